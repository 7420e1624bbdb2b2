package agentmail

import (
	"strings"
	"sync"

	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/services/accounts"
)

type ClientFactory func(apiKey string) (interfaces.AgentMailClient, error)

// ClientCache shares one provider client per api key and rebuilds it when the key changes
type ClientCache struct {
	mutex     sync.Mutex
	client    interfaces.AgentMailClient
	clientKey string
	factory   ClientFactory
}

func NewClientCache(cfg *config.AgentMailAPIConfig, log logger.Logger) *ClientCache {
	return NewClientCacheWithFactory(func(apiKey string) (interfaces.AgentMailClient, error) {
		return NewClient(apiKey, cfg, log)
	})
}

func NewClientCacheWithFactory(factory ClientFactory) *ClientCache {
	return &ClientCache{factory: factory}
}

func (c *ClientCache) Client(apiKey string) (interfaces.AgentMailClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, mcerrors.ErrTokenRequired
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.client != nil && c.clientKey == apiKey {
		return c.client, nil
	}

	client, err := c.factory(apiKey)
	if err != nil {
		return nil, err
	}
	c.client = client
	c.clientKey = apiKey
	return client, nil
}

// ClientAndInbox resolves credentials from the channel config and returns the shared client for them
func (c *ClientCache) ClientAndInbox(cfg *config.HostConfig, env accounts.Env) (interfaces.AgentMailClient, string, error) {
	creds := accounts.ResolveCredentials(cfg.AgentMail(), env)
	if creds.APIKey == "" || creds.InboxID == "" {
		return nil, "", mcerrors.ErrNotConfigured
	}

	client, err := c.Client(creds.APIKey)
	if err != nil {
		return nil, "", err
	}
	return client, creds.InboxID, nil
}
