package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/api/handlers"
	"github.com/customeros/mailchannel/api/middleware"
	"github.com/customeros/mailchannel/dto"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/mocks"
	"github.com/customeros/mailchannel/services/status"
)

const testAPIKey = "test-key"

type fakeReporter struct {
	report   *status.Report
	err      error
	probed   []string
	probe    status.Probe
	withProb []bool
}

func (f *fakeReporter) Report(ctx context.Context, withProbe bool) (*status.Report, error) {
	f.withProb = append(f.withProb, withProbe)
	return f.report, f.err
}

func (f *fakeReporter) ProbeAccount(ctx context.Context, accountID string) status.Probe {
	f.probed = append(f.probed, accountID)
	return f.probe
}

func setupRouter(reporter *fakeReporter, outbound *mocks.OutboundService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, handlers.InitHandlers(reporter, outbound), testAPIKey)
	return r
}

func doRequest(r *gin.Engine, method, path, body string, authorized bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	// Arrange
	r := setupRouter(&fakeReporter{}, &mocks.OutboundService{})

	// Act
	w := doRequest(r, http.MethodGet, "/health", "", false)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStatus_ReturnsReport(t *testing.T) {
	// Arrange
	reporter := &fakeReporter{report: &status.Report{
		Accounts: []status.AccountSnapshot{{AccountID: "default", Configured: true}},
		Issues:   []status.Issue{},
		Warnings: []string{status.WarningNoAllowFrom},
	}}
	r := setupRouter(reporter, &mocks.OutboundService{})

	// Act
	w := doRequest(r, http.MethodGet, "/status?probe=true", "", false)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	var report status.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "default", report.Accounts[0].AccountID)
	assert.Equal(t, []string{status.WarningNoAllowFrom}, report.Warnings)
	assert.Equal(t, []bool{true}, reporter.withProb)
}

func TestStatus_ConfigError(t *testing.T) {
	// Arrange
	r := setupRouter(&fakeReporter{err: assert.AnError}, &mocks.OutboundService{})

	// Act
	w := doRequest(r, http.MethodGet, "/status", "", false)

	// Assert
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestV1_RequiresAPIKey(t *testing.T) {
	// Arrange
	r := setupRouter(&fakeReporter{report: &status.Report{}}, &mocks.OutboundService{})

	// Act
	missing := doRequest(r, http.MethodGet, "/v1/accounts", "", false)
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
	req.Header.Set(middleware.APIKeyHeader, "wrong")
	wrong := httptest.NewRecorder()
	r.ServeHTTP(wrong, req)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, missing.Code)
	assert.Contains(t, missing.Body.String(), "Missing API key")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Contains(t, wrong.Body.String(), "Invalid API key")
}

func TestAccounts_ListsSnapshotsWithoutProbe(t *testing.T) {
	// Arrange
	reporter := &fakeReporter{report: &status.Report{Accounts: []status.AccountSnapshot{{AccountID: "default"}}}}
	r := setupRouter(reporter, &mocks.OutboundService{})

	// Act
	w := doRequest(r, http.MethodGet, "/v1/accounts", "", true)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accountId":"default"`)
	assert.Equal(t, []bool{false}, reporter.withProb)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestProbe_DefaultsAccount(t *testing.T) {
	// Arrange
	reporter := &fakeReporter{probe: status.Probe{OK: true, ElapsedMs: 12}}
	r := setupRouter(reporter, &mocks.OutboundService{})

	// Act
	w := doRequest(r, http.MethodPost, "/v1/probe", "", true)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"elapsedMs":12}`, w.Body.String())
	assert.Equal(t, []string{"default"}, reporter.probed)
}

func TestReply_SendsText(t *testing.T) {
	// Arrange
	outbound := &mocks.OutboundService{}
	outbound.On("SendText", mock.Anything, dto.OutboundRequest{Text: "Thanks!", ReplyToID: "msg_1"}).
		Return(&dto.OutboundResult{Channel: "agentmail", MessageID: "msg_2", ThreadID: "thr_1"}, nil).Once()
	r := setupRouter(&fakeReporter{}, outbound)

	// Act
	w := doRequest(r, http.MethodPost, "/v1/messages/msg_1/reply", `{"text":"Thanks!"}`, true)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"channel":"agentmail","messageId":"msg_2","threadId":"thr_1"}`, w.Body.String())
	outbound.AssertExpectations(t)
}

func TestReply_SendsMedia(t *testing.T) {
	// Arrange
	outbound := &mocks.OutboundService{}
	outbound.On("SendMedia", mock.Anything, mock.MatchedBy(func(req dto.OutboundRequest) bool {
		return req.ReplyToID == "msg_1" && req.MediaURL == "https://cdn/q.pdf" && req.AccountID == "default"
	})).Return(&dto.OutboundResult{Channel: "agentmail", MessageID: "msg_3"}, nil).Once()
	r := setupRouter(&fakeReporter{}, outbound)

	// Act
	w := doRequest(r, http.MethodPost, "/v1/messages/msg_1/reply", `{"text":"Quote","mediaUrl":"https://cdn/q.pdf","accountId":"default"}`, true)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	outbound.AssertExpectations(t)
}

func TestReply_RejectsBlankMessageID(t *testing.T) {
	// Arrange
	outbound := &mocks.OutboundService{}
	r := setupRouter(&fakeReporter{}, outbound)

	// Act
	w := doRequest(r, http.MethodPost, "/v1/messages/%20/reply", `{"text":"hi"}`, true)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "message id is required")
	outbound.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything)
}

func TestReply_RejectsEmptyBody(t *testing.T) {
	// Arrange
	r := setupRouter(&fakeReporter{}, &mocks.OutboundService{})

	// Act
	invalid := doRequest(r, http.MethodPost, "/v1/messages/msg_1/reply", `not json`, true)
	empty := doRequest(r, http.MethodPost, "/v1/messages/msg_1/reply", `{"text":"  "}`, true)

	// Assert
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
	assert.Equal(t, http.StatusBadRequest, empty.Code)
	assert.Contains(t, empty.Body.String(), "provide text or mediaUrl")
}

func TestReply_ReportsEveryInvalidField(t *testing.T) {
	// Arrange
	r := setupRouter(&fakeReporter{}, &mocks.OutboundService{})

	// Act
	w := doRequest(r, http.MethodPost, "/v1/messages/%20/reply", `{"text":""}`, true)

	// Assert
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "id: message id is required | text: provide text or mediaUrl", body.Error)
	assert.Equal(t, []string{"message id is required"}, body.Fields["id"])
	assert.Equal(t, []string{"provide text or mediaUrl"}, body.Fields["text"])
}

func TestReply_MapsOutboundErrors(t *testing.T) {
	// Arrange
	outbound := &mocks.OutboundService{}
	outbound.On("SendText", mock.Anything, mock.Anything).Return(nil, mcerrors.ErrNotConfigured).Once()
	r := setupRouter(&fakeReporter{}, outbound)

	// Act
	w := doRequest(r, http.MethodPost, "/v1/messages/msg_1/reply", `{"text":"hi"}`, true)

	// Assert
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), mcerrors.ErrNotConfigured.Error())
}
