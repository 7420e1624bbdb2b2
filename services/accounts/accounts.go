package accounts

import (
	"os"
	"regexp"
	"strings"

	"github.com/customeros/mailchannel/config"
)

const (
	DefaultAccountID = "default"

	EnvToken        = "AGENTMAIL_TOKEN"
	EnvEmailAddress = "AGENTMAIL_EMAIL_ADDRESS"

	maxAccountIDLength = 64
)

var invalidAccountIDChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// Env is a snapshot of environment variables used as credential fallbacks
type Env map[string]string

// OSEnv snapshots the process environment
func OSEnv() Env {
	env := Env{}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

type Credentials struct {
	APIKey  string `json:"apiKey,omitempty"`
	InboxID string `json:"inboxId,omitempty"`
}

type ResolvedAccount struct {
	AccountID  string                         `json:"accountId"`
	Name       string                         `json:"name,omitempty"`
	Enabled    bool                           `json:"enabled"`
	Configured bool                           `json:"configured"`
	Config     *config.AgentMailChannelConfig `json:"-"`
	InboxID    string                         `json:"inboxId,omitempty"`
}

// ResolveCredentials prefers the channel config over the environment
func ResolveCredentials(section *config.AgentMailChannelConfig, env Env) Credentials {
	if section == nil {
		section = &config.AgentMailChannelConfig{}
	}
	creds := Credentials{
		APIKey:  section.Token,
		InboxID: section.EmailAddress,
	}
	if creds.APIKey == "" {
		creds.APIKey = env[EnvToken]
	}
	if creds.InboxID == "" {
		creds.InboxID = env[EnvEmailAddress]
	}
	return creds
}

func ResolveAccount(cfg *config.HostConfig, accountID string, env Env) *ResolvedAccount {
	section := cfg.AgentMail()
	creds := ResolveCredentials(section, env)

	return &ResolvedAccount{
		AccountID:  NormalizeAccountID(accountID),
		Name:       strings.TrimSpace(section.Name),
		Enabled:    section.Enabled == nil || *section.Enabled,
		Configured: creds.APIKey != "" && creds.InboxID != "",
		Config:     section,
		InboxID:    creds.InboxID,
	}
}

// ListAccountIDs returns the single supported account
func ListAccountIDs() []string {
	return []string{DefaultAccountID}
}

func NormalizeAccountID(accountID string) string {
	id := strings.ToLower(strings.TrimSpace(accountID))
	id = invalidAccountIDChars.ReplaceAllString(id, "-")
	id = strings.Trim(id, "-")
	if len(id) > maxAccountIDLength {
		id = strings.TrimRight(id[:maxAccountIDLength], "-")
	}
	if id == "" {
		return DefaultAccountID
	}
	return id
}
