package host

import (
	"strings"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
)

const (
	DefaultAgentID   = "main"
	DefaultAccountID = "default"
)

type routing struct{}

func NewRouting() interfaces.RoutingCapability {
	return &routing{}
}

func (r *routing) ResolveAgentRoute(cfg *config.HostConfig, channel string, peer dto.Peer) dto.AgentRoute {
	agentID := ResolveAgentID(cfg)
	return dto.AgentRoute{
		AgentID:        agentID,
		Channel:        channel,
		AccountID:      DefaultAccountID,
		SessionKey:     "agent:" + agentID + ":" + channel + ":" + peer.Kind + ":" + strings.ToLower(strings.TrimSpace(peer.ID)),
		MainSessionKey: "agent:" + agentID + ":main",
	}
}

func ResolveAgentID(cfg *config.HostConfig) string {
	if cfg == nil {
		return DefaultAgentID
	}
	if id := strings.TrimSpace(cfg.Agent.ID); id != "" {
		return id
	}
	return DefaultAgentID
}
