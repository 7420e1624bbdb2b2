package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/mocks"
	"github.com/customeros/mailchannel/services/accounts"
	"github.com/customeros/mailchannel/services/agentmail"
)

func TestValidateInput(t *testing.T) {
	assert.NoError(t, ValidateInput(Input{UseEnv: true}))
	assert.Equal(t, ErrTokenMissing, ValidateInput(Input{Token: "  "}))
	assert.Equal(t, ErrEmailAddressMissing, ValidateInput(Input{Token: "am_1"}))
	assert.NoError(t, ValidateInput(Input{Token: "am_1", EmailAddress: "bot@agentmail.to"}))
	assert.Equal(t, "AgentMail requires --token", ErrTokenMissing.Error())
}

func TestApplyAccountConfig(t *testing.T) {
	// Arrange
	existing := &config.AgentMailChannelConfig{AllowFrom: []string{"a.com"}, Token: "old"}
	cfg := &config.HostConfig{Channels: config.ChannelsConfig{AgentMail: existing}}

	// Act
	next := ApplyAccountConfig(cfg, Input{Token: " am_1 ", EmailAddress: " bot@agentmail.to "})

	// Assert
	section := next.AgentMail()
	require.NotNil(t, section.Enabled)
	assert.True(t, *section.Enabled)
	assert.Equal(t, "am_1", section.Token)
	assert.Equal(t, "bot@agentmail.to", section.EmailAddress)
	assert.Equal(t, []string{"a.com"}, section.AllowFrom)
	assert.Equal(t, "old", existing.Token)
}

func TestApplyAccountConfig_UseEnvKeepsCredentialsOut(t *testing.T) {
	cfg := ApplyAccountConfig(&config.HostConfig{}, Input{Token: "am_1", EmailAddress: "bot@agentmail.to", UseEnv: true})

	assert.True(t, *cfg.AgentMail().Enabled)
	assert.Empty(t, cfg.AgentMail().Token)
	assert.Empty(t, cfg.AgentMail().EmailAddress)
}

func TestAccountMutations(t *testing.T) {
	// Arrange
	cfg := &config.HostConfig{Channels: config.ChannelsConfig{AgentMail: &config.AgentMailChannelConfig{
		Token: "am_1", EmailAddress: "bot@agentmail.to", AllowFrom: []string{"a.com"},
	}}}

	// Act
	ApplyAccountName(cfg, "default", " Sales bot ")
	ApplyAccountName(cfg, "other", "ignored")
	SetAccountEnabled(cfg, "DEFAULT", false)
	AddAllowFrom(cfg, " b.com ")
	AddAllowFrom(cfg, "  ")

	// Assert
	section := cfg.AgentMail()
	assert.Equal(t, "Sales bot", section.Name)
	assert.False(t, *section.Enabled)
	assert.Equal(t, []string{"a.com", "b.com"}, section.AllowFrom)

	DeleteAccount(cfg, "default")
	section = cfg.AgentMail()
	assert.Empty(t, section.Name)
	assert.Empty(t, section.Token)
	assert.Empty(t, section.EmailAddress)
	assert.Nil(t, section.AllowFrom)
	assert.False(t, *section.Enabled)
}

func TestParseInboxInput(t *testing.T) {
	assert.Equal(t, InboxAddress{Username: "my-agent", Domain: "agentmail.to"}, ParseInboxInput(" My-Agent "))
	assert.Equal(t, InboxAddress{Username: "bot", Domain: "example.com"}, ParseInboxInput("Bot@Example.com"))
	assert.Equal(t, "bot@example.com", ParseInboxInput("bot@example.com").String())
}

func TestValidateInboxInput(t *testing.T) {
	assert.Error(t, ValidateInboxInput(""))
	assert.Equal(t, ErrInvalidUsername, ValidateInboxInput("-bad"))
	assert.Equal(t, ErrInvalidUsername, ValidateInboxInput("bad!name"))
	assert.NoError(t, ValidateInboxInput("agent"))
	assert.NoError(t, ValidateInboxInput("my.agent_1"))
}

func TestOnboardingStatus(t *testing.T) {
	configured := OnboardingStatus(&accounts.ResolvedAccount{Configured: true, InboxID: "bot@agentmail.to"})
	missing := OnboardingStatus(&accounts.ResolvedAccount{})

	assert.Equal(t, []string{"AgentMail: configured (bot@agentmail.to)"}, configured.StatusLines)
	assert.Equal(t, 1, configured.QuickstartScore)
	assert.Equal(t, []string{"AgentMail: needs token"}, missing.StatusLines)
	assert.Equal(t, "not configured", missing.SelectionHint)
	assert.Equal(t, 5, missing.QuickstartScore)
}

func TestListInboxes(t *testing.T) {
	client := &mocks.AgentMailClient{}
	client.On("ListInboxes", mock.Anything).Return([]dto.Inbox{{InboxID: "a@agentmail.to"}, {InboxID: "b@agentmail.to"}}, nil)

	ids, err := ListInboxes(context.Background(), client)

	require.NoError(t, err)
	assert.Equal(t, []string{"a@agentmail.to", "b@agentmail.to"}, ids)
}

func TestCreateInbox(t *testing.T) {
	// Arrange
	client := &mocks.AgentMailClient{}
	client.On("CreateInbox", mock.Anything, dto.CreateInboxRequest{Username: "sales", Domain: "agentmail.to", DisplayName: "Sales"}).
		Return(&dto.Inbox{InboxID: "sales@agentmail.to"}, nil)

	// Act
	inboxID, err := CreateInbox(context.Background(), client, "sales", " Sales ")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "sales@agentmail.to", inboxID)
}

func TestCreateInbox_Taken(t *testing.T) {
	client := &mocks.AgentMailClient{}
	client.On("CreateInbox", mock.Anything, mock.Anything).Return(nil, &agentmail.APIError{StatusCode: 409, Body: "conflict"})

	_, err := CreateInbox(context.Background(), client, "sales", "")

	assert.ErrorIs(t, err, ErrInboxTaken)
}

func TestCreateInbox_OtherFailure(t *testing.T) {
	client := &mocks.AgentMailClient{}
	client.On("CreateInbox", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	_, err := CreateInbox(context.Background(), client, "sales", "")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInboxTaken)
	assert.Contains(t, err.Error(), "Failed to create inbox")
}

func TestCreateInbox_InvalidInputSkipsProvider(t *testing.T) {
	client := &mocks.AgentMailClient{}

	_, err := CreateInbox(context.Background(), client, "!!", "")

	assert.Equal(t, ErrInvalidUsername, err)
	client.AssertNotCalled(t, "CreateInbox", mock.Anything, mock.Anything)
}
