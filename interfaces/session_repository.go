package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/models"
)

type SessionRepository interface {
	// GetUpdatedAt returns errors.ErrSessionNotFound for an unknown session
	GetUpdatedAt(ctx context.Context, storePath, sessionKey string) (*time.Time, error)
	RecordInbound(ctx context.Context, storePath, sessionKey string, inbound dto.InboundContext) error
	UpsertRoute(ctx context.Context, storePath string, route dto.LastRouteUpdate) error
	GetRoute(ctx context.Context, storePath, sessionKey string) (*models.SessionRoute, error)
	ListTurns(ctx context.Context, storePath, sessionKey string, limit int) ([]models.InboundTurn, error)
}
