package email_filter

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
)

const LabelAllowed = "allowed"

type emailFilterService struct{}

func NewEmailFilterService() interfaces.EmailFilterService {
	return &emailFilterService{}
}

func (s *emailFilterService) IsSenderAllowed(senderEmail string, allowFrom []string) bool {
	return CheckSenderAllowed(senderEmail, allowFrom)
}

// LabelMessageAllowed tags the provider copy of the message so operators can see what reached the agent
func (s *emailFilterService) LabelMessageAllowed(ctx context.Context, client interfaces.AgentMailClient, inboxID, messageID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailFilterService.LabelMessageAllowed")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, messageID)

	_, err := client.UpdateMessage(ctx, inboxID, messageID, dto.UpdateMessageRequest{
		AddLabels: []string{LabelAllowed},
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to label message as allowed")
	}
	return nil
}

// MatchesList reports whether the sender equals an entry or its domain does.
// An empty list matches nothing.
func MatchesList(senderEmail string, list []string) bool {
	if len(list) == 0 {
		return false
	}

	sender := strings.ToLower(strings.TrimSpace(senderEmail))
	hasDomain := strings.Contains(sender, "@")
	domain := utils.DomainPart(sender)

	for _, e := range list {
		entry := strings.ToLower(strings.TrimSpace(e))
		if entry == sender || (hasDomain && entry == domain) {
			return true
		}
	}
	return false
}

// CheckSenderAllowed treats an empty allowlist as open mode
func CheckSenderAllowed(senderEmail string, allowFrom []string) bool {
	return len(allowFrom) == 0 || MatchesList(senderEmail, allowFrom)
}

func FormatAllowFrom(entries []string) []string {
	return utils.NormalizeEntries(entries)
}
