package interfaces

import (
	"context"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/services/accounts"
)

type ClientResolver interface {
	ClientAndInbox(cfg *config.HostConfig, env accounts.Env) (AgentMailClient, string, error)
}

type OutboundService interface {
	SendReply(ctx context.Context, client AgentMailClient, inboxID, messageID, text, html string) (*dto.SendMessageResponse, error)
	SendText(ctx context.Context, request dto.OutboundRequest) (*dto.OutboundResult, error)
	SendMedia(ctx context.Context, request dto.OutboundRequest) (*dto.OutboundResult, error)
}
