package agentmail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/services/accounts"
)

func countingCache(calls *[]string) *ClientCache {
	return NewClientCacheWithFactory(func(apiKey string) (interfaces.AgentMailClient, error) {
		*calls = append(*calls, apiKey)
		return NewClient(apiKey, nil, getLogger())
	})
}

func TestClientCache_ReusesClientForSameKey(t *testing.T) {
	// Arrange
	var calls []string
	cache := countingCache(&calls)

	// Act
	first, err1 := cache.Client("key-1")
	second, err2 := cache.Client("key-1")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Same(t, first, second)
	assert.Equal(t, []string{"key-1"}, calls)
}

func TestClientCache_RecreatesClientWhenKeyChanges(t *testing.T) {
	// Arrange
	var calls []string
	cache := countingCache(&calls)

	// Act
	first, _ := cache.Client("key-1")
	second, _ := cache.Client("key-2")

	// Assert
	assert.NotSame(t, first, second)
	assert.Equal(t, []string{"key-1", "key-2"}, calls)
}

func TestClientCache_EmptyKey(t *testing.T) {
	// Arrange
	var calls []string
	cache := countingCache(&calls)

	// Act
	_, err := cache.Client("")

	// Assert
	assert.Equal(t, mcerrors.ErrTokenRequired, err)
	assert.Empty(t, calls)
}

func TestClientCache_ClientAndInbox(t *testing.T) {
	// Arrange
	var calls []string
	cache := countingCache(&calls)
	cfg := &config.HostConfig{Channels: config.ChannelsConfig{AgentMail: &config.AgentMailChannelConfig{Token: "key-1"}}}

	// Act
	client, inbox, err := cache.ClientAndInbox(cfg, accounts.Env{"AGENTMAIL_EMAIL_ADDRESS": "bot@agentmail.to"})

	// Assert
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, "bot@agentmail.to", inbox)
}

func TestClientCache_ClientAndInboxNotConfigured(t *testing.T) {
	// Arrange
	var calls []string
	cache := countingCache(&calls)

	// Act
	_, _, err := cache.ClientAndInbox(&config.HostConfig{}, accounts.Env{"AGENTMAIL_TOKEN": "key-1"})

	// Assert
	assert.EqualError(t, err, "AgentMail not configured (missing token or email address)")
	assert.Empty(t, calls)
}
