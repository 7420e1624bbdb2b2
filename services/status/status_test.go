package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/enum"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/mocks"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/monitor"
)

func noEnv() accounts.Env {
	return accounts.Env{}
}

func hostConfig(section *config.AgentMailChannelConfig) *config.HostConfig {
	return &config.HostConfig{Channels: config.ChannelsConfig{AgentMail: section}}
}

func TestBuildAccountSnapshot_DefaultsRuntime(t *testing.T) {
	// Arrange
	account := &accounts.ResolvedAccount{AccountID: "default", Enabled: true, Configured: true, InboxID: "bot@agentmail.to"}

	// Act
	snapshot := BuildAccountSnapshot(account, nil, nil)

	// Assert
	assert.Equal(t, "default", snapshot.AccountID)
	assert.Equal(t, "bot@agentmail.to", snapshot.EmailAddress)
	assert.Equal(t, enum.MonitorIdle, snapshot.Phase)
	assert.False(t, snapshot.Running)
	assert.Nil(t, snapshot.LastStartAt)
	assert.Nil(t, snapshot.Probe)
}

func TestBuildAccountSnapshot_CopiesRuntime(t *testing.T) {
	// Arrange
	now := time.Now()
	runtime := &monitor.RuntimeState{Phase: enum.MonitorConnected, Running: true, LastStartAt: &now, LastInboundAt: &now, LastError: "boom"}
	probe := &Probe{OK: true}

	// Act
	snapshot := BuildAccountSnapshot(&accounts.ResolvedAccount{AccountID: "default"}, runtime, probe)
	summary := BuildChannelSummary(snapshot)

	// Assert
	assert.True(t, snapshot.Running)
	assert.Equal(t, &now, snapshot.LastInboundAt)
	assert.Equal(t, "boom", summary.LastError)
	assert.Equal(t, probe, summary.Probe)
	assert.True(t, summary.Running)
}

func TestCollectStatusIssues_OnlyNonBlankErrors(t *testing.T) {
	issues := CollectStatusIssues([]AccountSnapshot{
		{AccountID: "a", LastError: "socket closed"},
		{AccountID: "b", LastError: "   "},
		{AccountID: "c"},
	})

	require.Len(t, issues, 1)
	assert.Equal(t, Issue{Channel: "agentmail", AccountID: "a", Kind: "runtime", Message: "Channel error: socket closed"}, issues[0])
}

func TestCollectWarnings(t *testing.T) {
	open := &accounts.ResolvedAccount{Config: &config.AgentMailChannelConfig{}, InboxID: "bot@agentmail.to"}
	restricted := &accounts.ResolvedAccount{Config: &config.AgentMailChannelConfig{AllowFrom: []string{"a.com"}}, InboxID: "bot@agentmail.to"}
	broken := &accounts.ResolvedAccount{Config: &config.AgentMailChannelConfig{AllowFrom: []string{"a.com"}}, InboxID: "not-an-address"}

	assert.Equal(t, []string{WarningNoAllowFrom}, CollectWarnings(open))
	assert.Empty(t, CollectWarnings(restricted))
	assert.Equal(t, []string{"- AgentMail: emailAddress not-an-address is not a valid email address."}, CollectWarnings(broken))
}

func TestResolveDMPolicy(t *testing.T) {
	policy := ResolveDMPolicy(&accounts.ResolvedAccount{Config: &config.AgentMailChannelConfig{AllowFrom: []string{"x.com"}}})
	empty := ResolveDMPolicy(&accounts.ResolvedAccount{})

	assert.Equal(t, "open", policy.Policy)
	assert.Equal(t, []string{"x.com"}, policy.AllowFrom)
	assert.Equal(t, "channels.agentmail.allowFrom", policy.PolicyPath)
	assert.Equal(t, "channels.agentmail.allowFrom", policy.AllowFromPath)
	assert.Equal(t, []string{}, empty.AllowFrom)
}

func TestNormalizeTargetAndLooksLikeID(t *testing.T) {
	assert.Equal(t, "", NormalizeTarget("   "))
	assert.Equal(t, "a@b.com", NormalizeTarget(" a@b.com "))
	assert.True(t, LooksLikeID(" jane@example.com "))
	assert.False(t, LooksLikeID("jane@localhost"))
	assert.False(t, LooksLikeID("msg_123"))
}

func TestProbeAccount_NotConfigured(t *testing.T) {
	// Arrange
	state := monitor.NewStateStore()
	provider := &mocks.ClientProvider{}
	service := NewService(&mocks.ConfigLoader{Config: hostConfig(nil)}, provider, state, noEnv)

	// Act
	probe := service.ProbeAccount(context.Background(), "default")

	// Assert
	assert.False(t, probe.OK)
	assert.Equal(t, mcerrors.ErrNotConfigured.Error(), probe.Error)
	assert.Zero(t, probe.ElapsedMs)
	assert.Empty(t, provider.Keys)
	recorded, ok := state.Get("default")
	require.True(t, ok)
	assert.NotNil(t, recorded.LastProbeAt)
}

func TestProbeAccount_Success(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("GetInbox", mock.Anything, "bot@agentmail.to").Return(&dto.Inbox{InboxID: "bot@agentmail.to"}, nil)
	cfg := hostConfig(&config.AgentMailChannelConfig{Token: "am_1", EmailAddress: "bot@agentmail.to"})
	service := NewService(&mocks.ConfigLoader{Config: cfg}, &mocks.ClientProvider{Result: client}, monitor.NewStateStore(), noEnv)

	// Act
	probe := service.ProbeAccount(context.Background(), "default")

	// Assert
	assert.True(t, probe.OK)
	assert.Empty(t, probe.Error)
	assert.Equal(t, map[string]string{"inboxId": "bot@agentmail.to"}, probe.Meta)
}

func TestProbeAccount_ProviderError(t *testing.T) {
	client := &mocks.AgentMailClient{}
	client.On("GetInbox", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	env := func() accounts.Env {
		return accounts.Env{accounts.EnvToken: "am_env", accounts.EnvEmailAddress: "env@agentmail.to"}
	}
	provider := &mocks.ClientProvider{Result: client}
	service := NewService(&mocks.ConfigLoader{}, provider, monitor.NewStateStore(), env)

	probe := service.ProbeAccount(context.Background(), "default")

	assert.False(t, probe.OK)
	assert.Equal(t, assert.AnError.Error(), probe.Error)
	assert.Equal(t, []string{"am_env"}, provider.Keys)
}

func TestReport_CombinesStateIssuesAndWarnings(t *testing.T) {
	// Arrange
	state := monitor.NewStateStore()
	state.Record("default", monitor.StatePatch{Phase: enum.MonitorReconnecting, LastError: stringPtr("socket closed")})
	cfg := hostConfig(&config.AgentMailChannelConfig{Token: "am_1", EmailAddress: "bot@agentmail.to"})
	service := NewService(&mocks.ConfigLoader{Config: cfg}, &mocks.ClientProvider{}, state, noEnv)

	// Act
	report, err := service.Report(context.Background(), false)

	// Assert
	require.NoError(t, err)
	require.Len(t, report.Accounts, 1)
	assert.Equal(t, enum.MonitorReconnecting, report.Accounts[0].Phase)
	assert.True(t, report.Accounts[0].Configured)
	assert.Nil(t, report.Accounts[0].Probe)
	require.NotNil(t, report.Summary)
	assert.Equal(t, "socket closed", report.Summary.LastError)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, []string{WarningNoAllowFrom}, report.Warnings)
}

func TestReport_ConfigError(t *testing.T) {
	service := NewService(&mocks.ConfigLoader{Err: assert.AnError}, &mocks.ClientProvider{}, monitor.NewStateStore(), noEnv)

	_, err := service.Report(context.Background(), true)

	assert.ErrorIs(t, err, assert.AnError)
}

func stringPtr(s string) *string {
	return &s
}
