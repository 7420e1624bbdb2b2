package host

import (
	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
)

type Dependencies struct {
	ChannelConfig *config.ChannelConfigLoader
	Sessions      interfaces.SessionRepository
	Agent         interfaces.AgentRuntimeClient
	Publisher     interfaces.EventPublisher
}

// NewHostRuntime assembles the capabilities the channel is started with
func NewHostRuntime(deps Dependencies, log logger.Logger) *interfaces.HostRuntime {
	return &interfaces.HostRuntime{
		Config:  NewConfigLoader(deps.ChannelConfig),
		Routing: NewRouting(),
		Session: NewSessionCapability(deps.Sessions, log.Named("session")),
		Reply:   NewReplyCapability(deps.Agent),
		System:  NewSystemCapability(deps.Publisher, log.Named("system")),
		Logging: NewLoggingCapability(log),
	}
}
