package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/logger"
)

type ConfigLoader struct {
	Config *config.HostConfig
	Err    error
}

func (l *ConfigLoader) LoadConfig() (*config.HostConfig, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Config == nil {
		return &config.HostConfig{}, nil
	}
	return l.Config, nil
}

type Routing struct {
	AgentID string
}

func (r *Routing) ResolveAgentRoute(cfg *config.HostConfig, channel string, peer dto.Peer) dto.AgentRoute {
	agentID := r.AgentID
	if agentID == "" {
		agentID = "main"
	}
	return dto.AgentRoute{
		AgentID:        agentID,
		Channel:        channel,
		AccountID:      "default",
		SessionKey:     "agent:" + agentID + ":" + channel + ":" + peer.Kind + ":" + peer.ID,
		MainSessionKey: "agent:" + agentID + ":main",
	}
}

// Session records every inbound session request
type Session struct {
	mutex     sync.Mutex
	Recorded  []dto.RecordInboundSessionRequest
	UpdatedAt *time.Time
	RecordErr error
}

func (s *Session) ResolveStorePath(store, agentID string) string {
	return store + "#" + agentID
}

func (s *Session) ReadSessionUpdatedAt(ctx context.Context, storePath, sessionKey string) *time.Time {
	return s.UpdatedAt
}

func (s *Session) RecordInboundSession(ctx context.Context, request dto.RecordInboundSessionRequest) {
	s.mutex.Lock()
	s.Recorded = append(s.Recorded, request)
	s.mutex.Unlock()
	if s.RecordErr != nil && request.OnRecordError != nil {
		request.OnRecordError(s.RecordErr)
	}
}

func (s *Session) Requests() []dto.RecordInboundSessionRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]dto.RecordInboundSessionRequest(nil), s.Recorded...)
}

// Reply delivers the configured payloads through the dispatcher the channel created
type Reply struct {
	mutex       sync.Mutex
	Payloads    []ReplyStep
	Inbound     []dto.InboundContext
	Envelopes   []dto.AgentEnvelope
	DispatchErr error
}

type ReplyStep struct {
	Kind    enum.ReplyKind
	Payload dto.ReplyPayload
}

func (r *Reply) ResolveEnvelopeFormatOptions(cfg *config.HostConfig) dto.EnvelopeOptions {
	return dto.EnvelopeOptions{}
}

func (r *Reply) FormatAgentEnvelope(envelope dto.AgentEnvelope) string {
	r.mutex.Lock()
	r.Envelopes = append(r.Envelopes, envelope)
	r.mutex.Unlock()
	return "[" + envelope.Channel + " " + envelope.From + "] " + envelope.Body
}

func (r *Reply) FinalizeInboundContext(inbound dto.InboundContext) dto.InboundContext {
	return inbound
}

func (r *Reply) ResolveHumanDelayConfig(cfg *config.HostConfig, agentID string) dto.HumanDelay {
	return dto.HumanDelay{Mode: "off"}
}

func (r *Reply) CreateReplyDispatcher(options dto.ReplyDispatcherOptions) interfaces.ReplyDispatcher {
	return &ReplyDispatcher{options: options}
}

func (r *Reply) DispatchReplyFromConfig(ctx context.Context, inbound dto.InboundContext, cfg *config.HostConfig, dispatcher interfaces.ReplyDispatcher) (dto.DispatchResult, error) {
	r.mutex.Lock()
	r.Inbound = append(r.Inbound, inbound)
	r.mutex.Unlock()
	if r.DispatchErr != nil {
		return dto.DispatchResult{}, r.DispatchErr
	}

	result := dto.DispatchResult{}
	for _, step := range r.Payloads {
		if !dispatcher.Dispatch(ctx, step.Payload, step.Kind) {
			continue
		}
		switch step.Kind {
		case enum.ReplyTool:
			result.Counts.Tool++
		case enum.ReplyBlock:
			result.Counts.Block++
		case enum.ReplyFinal:
			result.Counts.Final++
			result.QueuedFinal = true
		}
	}
	return result, nil
}

func (r *Reply) InboundContexts() []dto.InboundContext {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]dto.InboundContext(nil), r.Inbound...)
}

type ReplyDispatcher struct {
	options dto.ReplyDispatcherOptions
	Idle    bool
}

func (d *ReplyDispatcher) Dispatch(ctx context.Context, payload dto.ReplyPayload, kind enum.ReplyKind) bool {
	info := dto.ReplyInfo{Kind: kind}
	if err := d.options.Deliver(ctx, payload, info); err != nil {
		if d.options.OnError != nil {
			d.options.OnError(err, info)
		}
		return false
	}
	return true
}

func (d *ReplyDispatcher) MarkIdle() {
	d.Idle = true
}

type SystemEvent struct {
	Text    string
	Options dto.SystemEventOptions
}

type System struct {
	mutex  sync.Mutex
	Events []SystemEvent
}

func (s *System) EnqueueSystemEvent(ctx context.Context, text string, options dto.SystemEventOptions) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.Events = append(s.Events, SystemEvent{Text: text, Options: options})
}

func (s *System) Enqueued() []SystemEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]SystemEvent(nil), s.Events...)
}

type Logging struct {
	Log     logger.Logger
	Verbose bool
}

func (l *Logging) ChildLogger(module string) logger.Logger {
	return l.Log.Named(module)
}

func (l *Logging) ShouldLogVerbose() bool {
	return l.Verbose
}

type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	args := m.Called(ctx, entityId, entityType, message)
	return args.Error(0)
}

func (m *EventPublisher) PublishNotification(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	args := m.Called(ctx, entityId, entityType, message)
	return args.Error(0)
}

func (m *EventPublisher) Close() error {
	return nil
}
