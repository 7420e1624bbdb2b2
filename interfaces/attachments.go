package interfaces

import (
	"context"

	"github.com/customeros/mailchannel/dto"
)

type AttachmentDownloader interface {
	Download(ctx context.Context, client AgentMailClient, inboxID, messageID string, list []dto.Attachment) []dto.DownloadedAttachment
}
