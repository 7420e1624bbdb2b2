package setup

import (
	"context"
	"regexp"
	"strings"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/agentmail"
)

const DefaultInboxDomain = "agentmail.to"

var (
	ErrTokenMissing        = errors.New("AgentMail requires --token")
	ErrEmailAddressMissing = errors.New("AgentMail requires --email-address")
	ErrInvalidUsername     = errors.New("Username must use lowercase letters, numbers, dots, underscores, or hyphens")
	ErrInboxTaken          = errors.New("inbox address is already taken")

	validUsername = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*[a-z0-9]$|^[a-z0-9]$`)
)

type Input struct {
	Token        string
	EmailAddress string
	Name         string
	UseEnv       bool
}

type InboxAddress struct {
	Username string
	Domain   string
}

func (a InboxAddress) String() string {
	return a.Username + "@" + a.Domain
}

type Status struct {
	Configured      bool     `json:"configured"`
	StatusLines     []string `json:"statusLines"`
	SelectionHint   string   `json:"selectionHint"`
	QuickstartScore int      `json:"quickstartScore"`
}

func ValidateInput(input Input) error {
	if input.UseEnv {
		return nil
	}
	if strings.TrimSpace(input.Token) == "" {
		return ErrTokenMissing
	}
	if strings.TrimSpace(input.EmailAddress) == "" {
		return ErrEmailAddressMissing
	}
	return nil
}

// section returns a writable copy of the agentmail section, attached to cfg
func section(cfg *config.HostConfig) *config.AgentMailChannelConfig {
	next := *cfg.AgentMail()
	next.AllowFrom = append([]string(nil), next.AllowFrom...)
	cfg.Channels.AgentMail = &next
	return &next
}

func boolPtr(b bool) *bool {
	return &b
}

// ApplyAccountConfig enables the channel and stores the credentials unless they come from the environment
func ApplyAccountConfig(cfg *config.HostConfig, input Input) *config.HostConfig {
	s := section(cfg)
	s.Enabled = boolPtr(true)
	if !input.UseEnv {
		if token := strings.TrimSpace(input.Token); token != "" {
			s.Token = token
		}
		if email := strings.TrimSpace(input.EmailAddress); email != "" {
			s.EmailAddress = email
		}
	}
	return cfg
}

// ApplyAccountName only supports the single account, other ids are ignored
func ApplyAccountName(cfg *config.HostConfig, accountID, name string) *config.HostConfig {
	if accounts.NormalizeAccountID(accountID) != accounts.DefaultAccountID {
		return cfg
	}
	if name = strings.TrimSpace(name); name != "" {
		section(cfg).Name = name
	}
	return cfg
}

func SetAccountEnabled(cfg *config.HostConfig, accountID string, enabled bool) *config.HostConfig {
	if accounts.NormalizeAccountID(accountID) != accounts.DefaultAccountID {
		return cfg
	}
	section(cfg).Enabled = boolPtr(enabled)
	return cfg
}

func DeleteAccount(cfg *config.HostConfig, accountID string) *config.HostConfig {
	if accounts.NormalizeAccountID(accountID) != accounts.DefaultAccountID {
		return cfg
	}
	s := section(cfg)
	s.Name = ""
	s.Token = ""
	s.EmailAddress = ""
	s.AllowFrom = nil
	return cfg
}

func AddAllowFrom(cfg *config.HostConfig, entry string) *config.HostConfig {
	if entry = strings.TrimSpace(entry); entry != "" {
		s := section(cfg)
		s.AllowFrom = append(s.AllowFrom, entry)
	}
	return cfg
}

// ParseInboxInput accepts "user" or "user@domain"
func ParseInboxInput(raw string) InboxAddress {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if username, domain, found := strings.Cut(trimmed, "@"); found {
		return InboxAddress{Username: username, Domain: strings.Split(domain, "@")[0]}
	}
	return InboxAddress{Username: trimmed, Domain: DefaultInboxDomain}
}

func ValidateInboxInput(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("Required")
	}
	address := ParseInboxInput(raw)
	if !validUsername.MatchString(address.Username) {
		return ErrInvalidUsername
	}
	if validation := mailvalidate.ValidateEmailSyntax(address.String()); !validation.IsValid {
		return errors.Errorf("%s is not a valid email address", address.String())
	}
	return nil
}

func OnboardingStatus(account *accounts.ResolvedAccount) Status {
	if account.Configured {
		return Status{
			Configured:      true,
			StatusLines:     []string{"AgentMail: configured (" + account.InboxID + ")"},
			SelectionHint:   "configured",
			QuickstartScore: 1,
		}
	}
	return Status{
		StatusLines:     []string{"AgentMail: needs token"},
		SelectionHint:   "not configured",
		QuickstartScore: 5,
	}
}

func ListInboxes(ctx context.Context, client interfaces.AgentMailClient) ([]string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Setup.ListInboxes")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	inboxes, err := client.ListInboxes(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	ids := make([]string, 0, len(inboxes))
	for _, inbox := range inboxes {
		ids = append(ids, inbox.InboxID)
	}
	return ids, nil
}

// CreateInbox returns ErrInboxTaken when the provider reports the address as used
func CreateInbox(ctx context.Context, client interfaces.AgentMailClient, raw, displayName string) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Setup.CreateInbox")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if err := ValidateInboxInput(raw); err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	address := ParseInboxInput(raw)
	span.LogKV("inbox", address.String())

	inbox, err := client.CreateInbox(ctx, dto.CreateInboxRequest{
		Username:    address.Username,
		Domain:      address.Domain,
		DisplayName: strings.TrimSpace(displayName),
	})
	if err != nil {
		tracing.TraceErr(span, err)
		if isTaken(err) {
			return "", errors.Wrap(ErrInboxTaken, address.String())
		}
		return "", errors.Wrap(err, "Failed to create inbox")
	}
	return inbox.InboxID, nil
}

func isTaken(err error) bool {
	if agentmail.IsConflict(err) {
		return true
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "already") || strings.Contains(lower, "taken") || strings.Contains(lower, "exists")
}
