package attachments

import (
	"fmt"
	"strings"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/utils"
)

// FormatFileSize renders bytes as B, KB or MB. Sizes beyond MB stay in MB.
func FormatFileSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%dB", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(bytes)/(1024*1024))
	}
}

func FormatAttachment(a dto.Attachment) string {
	return fmt.Sprintf("  - %s (%s, %s, id: %s)",
		utils.FirstNonEmpty(a.Filename, "unnamed"),
		utils.FirstNonEmpty(a.ContentType, "unknown"),
		FormatFileSize(a.Size),
		a.AttachmentID)
}

func FormatAttachments(list []dto.Attachment) string {
	if len(list) == 0 {
		return ""
	}
	lines := make([]string, 0, len(list))
	for _, a := range list {
		lines = append(lines, FormatAttachment(a))
	}
	return "Attachments:\n" + strings.Join(lines, "\n")
}

func FormatAttachmentResponse(r dto.AttachmentResponse) string {
	return strings.Join([]string{
		"Attachment: " + utils.FirstNonEmpty(r.Filename, "unnamed"),
		"Type: " + utils.FirstNonEmpty(r.ContentType, "unknown"),
		"Size: " + FormatFileSize(r.Size),
		"Download URL: " + r.DownloadURL,
		"Expires: " + utils.FormatUTCDate(r.ExpiresAt),
	}, "\n")
}
