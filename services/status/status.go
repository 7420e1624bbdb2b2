package status

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/customeros/mailsherpa/mailvalidate"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/monitor"
)

const (
	ChannelID     = "agentmail"
	allowFromPath = "channels.agentmail.allowFrom"

	WarningNoAllowFrom = "- AgentMail: No allowFrom configured. All senders will be allowed."
)

var emailLike = regexp.MustCompile(`\S+@\S+\.\S+`)

type Probe struct {
	OK        bool              `json:"ok"`
	ElapsedMs int64             `json:"elapsedMs"`
	Error     string            `json:"error,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

type AccountSnapshot struct {
	AccountID      string            `json:"accountId"`
	Name           string            `json:"name,omitempty"`
	Enabled        bool              `json:"enabled"`
	Configured     bool              `json:"configured"`
	EmailAddress   string            `json:"emailAddress,omitempty"`
	Phase          enum.MonitorState `json:"phase"`
	Running        bool              `json:"running"`
	LastStartAt    *time.Time        `json:"lastStartAt"`
	LastStopAt     *time.Time        `json:"lastStopAt"`
	LastError      string            `json:"lastError,omitempty"`
	Probe          *Probe            `json:"probe,omitempty"`
	LastProbeAt    *time.Time        `json:"lastProbeAt"`
	LastInboundAt  *time.Time        `json:"lastInboundAt"`
	LastOutboundAt *time.Time        `json:"lastOutboundAt"`
}

type ChannelSummary struct {
	Configured  bool       `json:"configured"`
	Running     bool       `json:"running"`
	LastStartAt *time.Time `json:"lastStartAt"`
	LastStopAt  *time.Time `json:"lastStopAt"`
	LastError   string     `json:"lastError,omitempty"`
	Probe       *Probe     `json:"probe,omitempty"`
	LastProbeAt *time.Time `json:"lastProbeAt"`
}

type Issue struct {
	Channel   string `json:"channel"`
	AccountID string `json:"accountId"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

type DMPolicy struct {
	Policy        string   `json:"policy"`
	AllowFrom     []string `json:"allowFrom"`
	PolicyPath    string   `json:"policyPath"`
	AllowFromPath string   `json:"allowFromPath"`
	ApproveHint   string   `json:"approveHint"`
}

func DefaultRuntime() monitor.RuntimeState {
	return monitor.RuntimeState{Phase: enum.MonitorIdle}
}

func BuildAccountSnapshot(account *accounts.ResolvedAccount, runtime *monitor.RuntimeState, probe *Probe) AccountSnapshot {
	if runtime == nil {
		r := DefaultRuntime()
		runtime = &r
	}
	return AccountSnapshot{
		AccountID:      account.AccountID,
		Name:           account.Name,
		Enabled:        account.Enabled,
		Configured:     account.Configured,
		EmailAddress:   account.InboxID,
		Phase:          runtime.Phase,
		Running:        runtime.Running,
		LastStartAt:    runtime.LastStartAt,
		LastStopAt:     runtime.LastStopAt,
		LastError:      runtime.LastError,
		Probe:          probe,
		LastProbeAt:    runtime.LastProbeAt,
		LastInboundAt:  runtime.LastInboundAt,
		LastOutboundAt: runtime.LastOutboundAt,
	}
}

func BuildChannelSummary(snapshot AccountSnapshot) ChannelSummary {
	return ChannelSummary{
		Configured:  snapshot.Configured,
		Running:     snapshot.Running,
		LastStartAt: snapshot.LastStartAt,
		LastStopAt:  snapshot.LastStopAt,
		LastError:   snapshot.LastError,
		Probe:       snapshot.Probe,
		LastProbeAt: snapshot.LastProbeAt,
	}
}

// CollectStatusIssues reports one runtime issue per account with a recorded error
func CollectStatusIssues(snapshots []AccountSnapshot) []Issue {
	var issues []Issue
	for _, s := range snapshots {
		if strings.TrimSpace(s.LastError) == "" {
			continue
		}
		issues = append(issues, Issue{
			Channel:   ChannelID,
			AccountID: s.AccountID,
			Kind:      "runtime",
			Message:   "Channel error: " + s.LastError,
		})
	}
	return issues
}

func CollectWarnings(account *accounts.ResolvedAccount) []string {
	var warnings []string
	if account.Config == nil || len(account.Config.AllowFrom) == 0 {
		warnings = append(warnings, WarningNoAllowFrom)
	}
	if account.InboxID != "" {
		if validation := mailvalidate.ValidateEmailSyntax(account.InboxID); !validation.IsValid {
			warnings = append(warnings, "- AgentMail: emailAddress "+account.InboxID+" is not a valid email address.")
		}
	}
	return warnings
}

func ResolveDMPolicy(account *accounts.ResolvedAccount) DMPolicy {
	allowFrom := []string{}
	if account.Config != nil && account.Config.AllowFrom != nil {
		allowFrom = account.Config.AllowFrom
	}
	return DMPolicy{
		Policy:        "open",
		AllowFrom:     allowFrom,
		PolicyPath:    allowFromPath,
		AllowFromPath: allowFromPath,
		ApproveHint:   "Add email addresses or domains to " + allowFromPath,
	}
}

// NormalizeTarget returns "" for a blank target
func NormalizeTarget(raw string) string {
	return strings.TrimSpace(raw)
}

func LooksLikeID(raw string) bool {
	return emailLike.MatchString(strings.TrimSpace(raw))
}

// Service answers status and probe questions for the configured accounts
type Service struct {
	configLoader interfaces.ConfigLoader
	clients      interfaces.AgentMailClientProvider
	state        *monitor.StateStore
	env          func() accounts.Env
}

func NewService(configLoader interfaces.ConfigLoader, clients interfaces.AgentMailClientProvider, state *monitor.StateStore, env func() accounts.Env) *Service {
	if env == nil {
		env = accounts.OSEnv
	}
	return &Service{configLoader: configLoader, clients: clients, state: state, env: env}
}

// ProbeAccount checks that the configured inbox is reachable and records the probe time
func (s *Service) ProbeAccount(ctx context.Context, accountID string) Probe {
	span, ctx := opentracing.StartSpanFromContext(ctx, "StatusService.ProbeAccount")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, accountID)

	probe := s.probe(ctx)
	if !probe.OK {
		tracing.TraceErr(span, errors.New(probe.Error))
	}

	probedAt := utils.Now()
	s.state.Record(accounts.NormalizeAccountID(accountID), monitor.StatePatch{LastProbeAt: &probedAt})
	return probe
}

func (s *Service) probe(ctx context.Context) Probe {
	cfg, err := s.configLoader.LoadConfig()
	if err != nil {
		return Probe{Error: err.Error()}
	}

	creds := accounts.ResolveCredentials(cfg.AgentMail(), s.env())
	if creds.APIKey == "" || creds.InboxID == "" {
		return Probe{Error: mcerrors.ErrNotConfigured.Error()}
	}

	client, err := s.clients.Client(creds.APIKey)
	if err != nil {
		return Probe{Error: err.Error()}
	}

	start := time.Now()
	inbox, err := client.GetInbox(ctx, creds.InboxID)
	if err != nil {
		return Probe{Error: err.Error()}
	}
	return Probe{
		OK:        true,
		ElapsedMs: time.Since(start).Milliseconds(),
		Meta:      map[string]string{"inboxId": inbox.InboxID},
	}
}

type Report struct {
	Accounts []AccountSnapshot `json:"accounts"`
	Summary  *ChannelSummary   `json:"summary,omitempty"`
	Issues   []Issue           `json:"issues"`
	Warnings []string          `json:"warnings"`
}

// Accounts resolves every known account against the current config
func (s *Service) Accounts() ([]*accounts.ResolvedAccount, error) {
	cfg, err := s.configLoader.LoadConfig()
	if err != nil {
		return nil, err
	}
	env := s.env()
	var list []*accounts.ResolvedAccount
	for _, id := range accounts.ListAccountIDs() {
		list = append(list, accounts.ResolveAccount(cfg, id, env))
	}
	return list, nil
}

// Report builds snapshots, issues and warnings; probes are only run when requested
func (s *Service) Report(ctx context.Context, withProbe bool) (*Report, error) {
	list, err := s.Accounts()
	if err != nil {
		return nil, err
	}

	report := &Report{Issues: []Issue{}, Warnings: []string{}}
	for _, account := range list {
		var probe *Probe
		if withProbe {
			p := s.ProbeAccount(ctx, account.AccountID)
			probe = &p
		}
		var runtime *monitor.RuntimeState
		if state, ok := s.state.Get(account.AccountID); ok {
			runtime = &state
		}
		report.Accounts = append(report.Accounts, BuildAccountSnapshot(account, runtime, probe))
		report.Warnings = append(report.Warnings, CollectWarnings(account)...)
	}

	if len(report.Accounts) > 0 {
		summary := BuildChannelSummary(report.Accounts[0])
		report.Summary = &summary
	}
	report.Issues = append(report.Issues, CollectStatusIssues(report.Accounts)...)
	return report, nil
}
