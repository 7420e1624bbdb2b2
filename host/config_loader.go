package host

import (
	"github.com/customeros/mailchannel/config"
	"github.com/customeros/mailchannel/interfaces"
)

type configLoader struct {
	loader *config.ChannelConfigLoader
}

// NewConfigLoader re-reads the channel file on every call
func NewConfigLoader(loader *config.ChannelConfigLoader) interfaces.ConfigLoader {
	return &configLoader{loader: loader}
}

func (l *configLoader) LoadConfig() (*config.HostConfig, error) {
	return l.loader.Load()
}
