package host

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/tracing"
)

var ErrAgentNotConfigured = errors.New("agent webhook url is not configured")

const maxErrorBody = 512

type agentClient struct {
	cfg        *config.AgentConfig
	httpClient *http.Client
}

func NewAgentClient(cfg *config.AgentConfig) interfaces.AgentRuntimeClient {
	if cfg == nil {
		cfg = &config.AgentConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &agentClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *agentClient) Run(ctx context.Context, inbound dto.InboundContext) ([]dto.AgentReply, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "AgentClient.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, inbound.MessageSid)
	span.SetTag("session.key", inbound.SessionKey)

	if strings.TrimSpace(c.cfg.WebhookURL) == "" {
		tracing.TraceErr(span, ErrAgentNotConfigured)
		return nil, ErrAgentNotConfigured
	}

	body, err := json.Marshal(inbound)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "encoding inbound context")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "building agent request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.WebhookAPIKey)
	}
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "calling agent webhook")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "reading agent response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = errors.Errorf("agent webhook returned status %d: %s", resp.StatusCode, truncate(string(respBody), maxErrorBody))
		tracing.TraceErr(span, err)
		return nil, err
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}

	var decoded dto.AgentWebhookResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "decoding agent response")
	}
	span.LogKV("replies.count", len(decoded.Replies))
	return decoded.Replies, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
