package agentmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
)

// APIError is returned for non-2xx provider responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agentmail api returned status %d: %s", e.StatusCode, e.Body)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

type client struct {
	apiKey     string
	cfg        *config.AgentMailAPIConfig
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(apiKey string, cfg *config.AgentMailAPIConfig, log logger.Logger) (interfaces.AgentMailClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, mcerrors.ErrTokenRequired
	}
	if cfg == nil {
		cfg = &config.AgentMailAPIConfig{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &client{
		apiKey:     apiKey,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

func (c *client) baseURL() string {
	if c.cfg.BaseURL == "" {
		return "https://api.agentmail.to/v0"
	}
	return strings.TrimRight(c.cfg.BaseURL, "/")
}

func (c *client) GetInbox(ctx context.Context, inboxID string) (*dto.Inbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.GetInbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("inbox.id", inboxID)

	var inbox dto.Inbox
	if err := c.do(ctx, http.MethodGet, "/inboxes/"+url.PathEscape(inboxID), nil, &inbox); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &inbox, nil
}

func (c *client) ListInboxes(ctx context.Context) ([]dto.Inbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.ListInboxes")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	var inboxes []dto.Inbox
	pageToken := ""
	for {
		path := "/inboxes"
		if pageToken != "" {
			path += "?page_token=" + url.QueryEscape(pageToken)
		}

		var page dto.ListInboxesResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		inboxes = append(inboxes, page.Inboxes...)

		if page.NextPageToken == "" || page.NextPageToken == pageToken {
			break
		}
		pageToken = page.NextPageToken
	}

	span.LogKV("inboxes.count", len(inboxes))
	return inboxes, nil
}

func (c *client) CreateInbox(ctx context.Context, request dto.CreateInboxRequest) (*dto.Inbox, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.CreateInbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "request", request)

	var inbox dto.Inbox
	if err := c.do(ctx, http.MethodPost, "/inboxes", request, &inbox); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &inbox, nil
}

func (c *client) GetMessage(ctx context.Context, inboxID, messageID string) (*dto.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.GetMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)

	var message dto.Message
	if err := c.do(ctx, http.MethodGet, messagePath(inboxID, messageID), nil, &message); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &message, nil
}

func (c *client) UpdateMessage(ctx context.Context, inboxID, messageID string, request dto.UpdateMessageRequest) (*dto.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.UpdateMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)
	tracing.LogObjectAsJson(span, "request", request)

	var message dto.Message
	if err := c.do(ctx, http.MethodPatch, messagePath(inboxID, messageID), request, &message); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &message, nil
}

func (c *client) ReplyAll(ctx context.Context, inboxID, messageID string, request dto.ReplyRequest) (*dto.SendMessageResponse, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.ReplyAll")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)

	var response dto.SendMessageResponse
	if err := c.do(ctx, http.MethodPost, messagePath(inboxID, messageID)+"/reply-all", request, &response); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.LogKV("reply.messageId", response.MessageID)
	return &response, nil
}

// GetAttachment returns the raw bytes, following the signed download url when the api answers with metadata
func (c *client) GetAttachment(ctx context.Context, inboxID, messageID, attachmentID string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.GetAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, attachmentID)

	path := messagePath(inboxID, messageID) + "/attachments/" + url.PathEscape(attachmentID)
	body, contentType, err := c.raw(ctx, http.MethodGet, c.baseURL()+path, nil, true)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if !strings.HasPrefix(contentType, "application/json") {
		return body, nil
	}

	var metadata dto.AttachmentResponse
	if err := json.Unmarshal(body, &metadata); err != nil || metadata.DownloadURL == "" {
		// plain json attachment content
		return body, nil
	}

	// signed url, no bearer token
	content, _, err := c.raw(ctx, http.MethodGet, metadata.DownloadURL, nil, false)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "downloading attachment content")
	}
	span.LogKV("attachment.size", len(content))
	return content, nil
}

func (c *client) GetThread(ctx context.Context, inboxID, threadID string) (*dto.Thread, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentMailClient.GetThread")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, threadID)

	var thread dto.Thread
	path := "/inboxes/" + url.PathEscape(inboxID) + "/threads/" + url.PathEscape(threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, &thread); err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &thread, nil
}

func messagePath(inboxID, messageID string) string {
	return "/inboxes/" + url.PathEscape(inboxID) + "/messages/" + url.PathEscape(messageID)
}

func (c *client) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "failed to marshal payload")
		}
		reader = bytes.NewReader(body)
	}

	body, _, err := c.raw(ctx, method, c.baseURL()+path, reader, true)
	if err != nil {
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to unmarshal response")
	}
	return nil
}

func (c *client) raw(ctx context.Context, method, target string, body io.Reader, authorized bool) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create request")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if span := opentracing.SpanFromContext(ctx); span != nil {
		req = tracing.InjectSpanContextIntoHTTPRequest(req, span)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, resp.Header.Get("Content-Type"), nil
}
