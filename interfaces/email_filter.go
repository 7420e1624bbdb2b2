package interfaces

import (
	"context"
)

type EmailFilterService interface {
	IsSenderAllowed(senderEmail string, allowFrom []string) bool
	LabelMessageAllowed(ctx context.Context, client AgentMailClient, inboxID, messageID string) error
}
