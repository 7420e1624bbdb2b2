package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// HostConfig is the channel configuration file read by the host runtime
type HostConfig struct {
	Channels ChannelsConfig     `yaml:"channels,omitempty"`
	Session  SessionConfig      `yaml:"session,omitempty"`
	Agent    AgentRuntimeConfig `yaml:"agent,omitempty"`
	Envelope EnvelopeConfig     `yaml:"envelope,omitempty"`
}

type ChannelsConfig struct {
	AgentMail *AgentMailChannelConfig `yaml:"agentmail,omitempty"`
}

type AgentMailChannelConfig struct {
	Name           string   `yaml:"name,omitempty" json:"name,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Token          string   `yaml:"token,omitempty" json:"token,omitempty"`
	EmailAddress   string   `yaml:"emailAddress,omitempty" json:"emailAddress,omitempty"`
	AllowFrom      []string `yaml:"allowFrom,omitempty" json:"allowFrom,omitempty"`
	BlockStreaming *bool    `yaml:"blockStreaming,omitempty" json:"blockStreaming,omitempty"`
}

// IsBlockStreaming defaults to false: only the final reply is sent, as a single email
func (c *AgentMailChannelConfig) IsBlockStreaming() bool {
	return c != nil && c.BlockStreaming != nil && *c.BlockStreaming
}

type SessionConfig struct {
	Store string `yaml:"store,omitempty"`
}

type AgentRuntimeConfig struct {
	ID         string           `yaml:"id,omitempty"`
	HumanDelay HumanDelayConfig `yaml:"humanDelay,omitempty"`
}

type HumanDelayConfig struct {
	Mode  string `yaml:"mode,omitempty"`
	MinMs int    `yaml:"minMs,omitempty"`
	MaxMs int    `yaml:"maxMs,omitempty"`
}

type EnvelopeConfig struct {
	Timezone         string `yaml:"timezone,omitempty"`
	IncludeTimestamp *bool  `yaml:"includeTimestamp,omitempty"`
	IncludeElapsed   *bool  `yaml:"includeElapsed,omitempty"`
}

// AgentMail returns the agentmail section, never nil
func (c *HostConfig) AgentMail() *AgentMailChannelConfig {
	if c == nil || c.Channels.AgentMail == nil {
		return &AgentMailChannelConfig{}
	}
	return c.Channels.AgentMail
}

// ChannelConfigLoader reads the channel file on every call so edits are picked up without a restart
type ChannelConfigLoader struct {
	path string
}

func NewChannelConfigLoader(path string) *ChannelConfigLoader {
	return &ChannelConfigLoader{path: path}
}

func (l *ChannelConfigLoader) Path() string {
	return l.path
}

func (l *ChannelConfigLoader) Load() (*HostConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &HostConfig{}, nil
		}
		return nil, errors.Wrapf(err, "reading channel config %s", l.path)
	}

	return ParseHostConfig(data)
}

func (l *ChannelConfigLoader) Save(cfg *HostConfig) error {
	if err := ValidateAgentMailSection(cfg.Channels.AgentMail); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding channel config")
	}

	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating config directory %s", dir)
		}
	}

	// token is a secret
	if err := os.WriteFile(l.path, data, 0o600); err != nil {
		return errors.Wrapf(err, "writing channel config %s", l.path)
	}
	return nil
}

func ParseHostConfig(data []byte) (*HostConfig, error) {
	cfg := &HostConfig{}
	if len(data) == 0 {
		return cfg, nil
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing channel config")
	}
	if err := validateRawAgentMailSection(raw); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing channel config")
	}
	return cfg, nil
}
