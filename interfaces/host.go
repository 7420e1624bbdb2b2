package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/logger"
)

type ConfigLoader interface {
	LoadConfig() (*config.HostConfig, error)
}

type RoutingCapability interface {
	ResolveAgentRoute(cfg *config.HostConfig, channel string, peer dto.Peer) dto.AgentRoute
}

// SessionCapability never returns errors to the channel, failures go to the request callback
type SessionCapability interface {
	ResolveStorePath(store, agentID string) string
	ReadSessionUpdatedAt(ctx context.Context, storePath, sessionKey string) *time.Time
	RecordInboundSession(ctx context.Context, request dto.RecordInboundSessionRequest)
}

type ReplyDispatcher interface {
	Dispatch(ctx context.Context, payload dto.ReplyPayload, kind enum.ReplyKind) bool
	MarkIdle()
}

type ReplyCapability interface {
	ResolveEnvelopeFormatOptions(cfg *config.HostConfig) dto.EnvelopeOptions
	FormatAgentEnvelope(envelope dto.AgentEnvelope) string
	FinalizeInboundContext(inbound dto.InboundContext) dto.InboundContext
	ResolveHumanDelayConfig(cfg *config.HostConfig, agentID string) dto.HumanDelay
	CreateReplyDispatcher(options dto.ReplyDispatcherOptions) ReplyDispatcher
	DispatchReplyFromConfig(ctx context.Context, inbound dto.InboundContext, cfg *config.HostConfig, dispatcher ReplyDispatcher) (dto.DispatchResult, error)
}

// AgentRuntimeClient hands an inbound turn to the agent and returns its replies
type AgentRuntimeClient interface {
	Run(ctx context.Context, inbound dto.InboundContext) ([]dto.AgentReply, error)
}

type SystemCapability interface {
	EnqueueSystemEvent(ctx context.Context, text string, options dto.SystemEventOptions)
}

type LoggingCapability interface {
	ChildLogger(module string) logger.Logger
	ShouldLogVerbose() bool
}

// HostRuntime is passed explicitly to every channel entry point
type HostRuntime struct {
	Config  ConfigLoader
	Routing RoutingCapability
	Session SessionCapability
	Reply   ReplyCapability
	System  SystemCapability
	Logging LoggingCapability
}
