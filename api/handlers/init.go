package handlers

import (
	"context"

	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/services/status"
)

// StatusReporter is satisfied by status.Service
type StatusReporter interface {
	Report(ctx context.Context, withProbe bool) (*status.Report, error)
	ProbeAccount(ctx context.Context, accountID string) status.Probe
}

type APIHandlers struct {
	Status   *StatusHandler
	Messages *MessagesHandler
}

func InitHandlers(reporter StatusReporter, outbound interfaces.OutboundService) *APIHandlers {
	return &APIHandlers{
		Status:   NewStatusHandler(reporter),
		Messages: NewMessagesHandler(outbound),
	}
}
