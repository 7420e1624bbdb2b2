package interfaces

import (
	"context"

	"github.com/customeros/mailchannel/dto"
)

// AgentMailClient is the provider API surface the channel consumes
type AgentMailClient interface {
	GetInbox(ctx context.Context, inboxID string) (*dto.Inbox, error)
	ListInboxes(ctx context.Context) ([]dto.Inbox, error)
	CreateInbox(ctx context.Context, request dto.CreateInboxRequest) (*dto.Inbox, error)
	GetMessage(ctx context.Context, inboxID, messageID string) (*dto.Message, error)
	UpdateMessage(ctx context.Context, inboxID, messageID string, request dto.UpdateMessageRequest) (*dto.Message, error)
	ReplyAll(ctx context.Context, inboxID, messageID string, request dto.ReplyRequest) (*dto.SendMessageResponse, error)
	GetAttachment(ctx context.Context, inboxID, messageID, attachmentID string) ([]byte, error)
	GetThread(ctx context.Context, inboxID, threadID string) (*dto.Thread, error)
	Connect(ctx context.Context) (AgentMailSocket, error)
}

// AgentMailSocket delivers open/message/error/close events until closed
type AgentMailSocket interface {
	Events() <-chan dto.SocketEvent
	Subscribe(frame dto.SubscribeFrame) error
	Close() error
}

type AgentMailClientProvider interface {
	Client(apiKey string) (AgentMailClient, error)
}
