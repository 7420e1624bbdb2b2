package thread

import (
	"context"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
	"github.com/customeros/mailchannel/services/attachments"
)

type threadService struct {
	log logger.Logger
}

func NewThreadService(log logger.Logger) interfaces.ThreadService {
	return &threadService{log: log}
}

func (s *threadService) FetchFormattedThread(ctx context.Context, client interfaces.AgentMailClient, inboxID, threadID string) string {
	span, ctx := opentracing.StartSpanFromContext(ctx, "threadService.FetchFormattedThread")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, threadID)

	thread, err := client.GetThread(ctx, inboxID, threadID)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Warnf("[%s][%s] failed to fetch thread: %v", inboxID, threadID, err)
		return ""
	}
	if thread == nil || len(thread.Messages) == 0 {
		span.LogKV("thread.empty", true)
		return ""
	}

	return FormatThread(thread)
}

// ExtractMessageBody prefers the reply-only extracted text over the full bodies
func ExtractMessageBody(m *dto.Message) string {
	if m == nil {
		return ""
	}
	return utils.FirstNonEmpty(m.ExtractedText, m.ExtractedHTML, m.Text, m.HTML)
}

func FormatThread(t *dto.Thread) string {
	blocks := make([]string, 0, len(t.Messages))
	for i := range t.Messages {
		blocks = append(blocks, formatMessage(&t.Messages[i]))
	}
	return formatHeader(t) + "\n\n" + strings.Join(blocks, "\n\n")
}

func formatHeader(t *dto.Thread) string {
	var lines []string
	if t.Subject != "" {
		lines = append(lines, "Subject: "+t.Subject)
	}
	lines = append(lines,
		"Senders: "+strings.Join(t.Senders, ", "),
		"Recipients: "+strings.Join(t.Recipients, ", "),
		fmt.Sprintf("Messages: %d", t.MessageCount),
	)
	return strings.Join(lines, "\n")
}

func formatRecipients(m *dto.Message) string {
	lines := []string{"To: " + strings.Join(m.To, ", ")}
	if len(m.Cc) > 0 {
		lines = append(lines, "Cc: "+strings.Join(m.Cc, ", "))
	}
	if len(m.Bcc) > 0 {
		lines = append(lines, "Bcc: "+strings.Join(m.Bcc, ", "))
	}
	return strings.Join(lines, "\n")
}

func formatMessage(m *dto.Message) string {
	parts := []string{
		"--- " + utils.FormatUTCDate(m.Timestamp) + " ---",
		"From: " + m.From,
		formatRecipients(m),
	}
	if block := attachments.FormatAttachments(m.Attachments); block != "" {
		parts = append(parts, block)
	}
	// blank line before body
	parts = append(parts, "", ExtractMessageBody(m))
	return strings.Join(parts, "\n")
}
