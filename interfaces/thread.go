package interfaces

import "context"

type ThreadService interface {
	// FetchFormattedThread returns "" on any failure
	FetchFormattedThread(ctx context.Context, client AgentMailClient, inboxID, threadID string) string
}
