package host

import (
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
)

type loggingCapability struct {
	log logger.Logger
}

func NewLoggingCapability(log logger.Logger) interfaces.LoggingCapability {
	return &loggingCapability{log: log}
}

func (l *loggingCapability) ChildLogger(module string) logger.Logger {
	return l.log.Named(module)
}

// ShouldLogVerbose is true when the process runs at debug level
func (l *loggingCapability) ShouldLogVerbose() bool {
	return l.log.IsDebug()
}
