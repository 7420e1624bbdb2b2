package repository

import (
	"context"
	"sync"
	"time"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/models"
	"github.com/customeros/mailchannel/internal/utils"
)

// memorySessionRepository backs the session store when no database is configured
type memorySessionRepository struct {
	mutex    sync.RWMutex
	sessions map[string]*models.InboundSession
	turns    map[string][]models.InboundTurn
	routes   map[string]models.SessionRoute
}

func NewMemorySessionRepository() interfaces.SessionRepository {
	return &memorySessionRepository{
		sessions: make(map[string]*models.InboundSession),
		turns:    make(map[string][]models.InboundTurn),
		routes:   make(map[string]models.SessionRoute),
	}
}

func memoryKey(storePath, sessionKey string) string {
	return storePath + "\x00" + sessionKey
}

func (r *memorySessionRepository) GetUpdatedAt(ctx context.Context, storePath, sessionKey string) (*time.Time, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	session, ok := r.sessions[memoryKey(storePath, sessionKey)]
	if !ok {
		return nil, mcerrors.ErrSessionNotFound
	}
	updatedAt := session.UpdatedAt
	return &updatedAt, nil
}

func (r *memorySessionRepository) RecordInbound(ctx context.Context, storePath, sessionKey string, inbound dto.InboundContext) error {
	contextMap, err := models.ToJSONMap(inbound)
	if err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := memoryKey(storePath, sessionKey)
	now := utils.Now()
	session, ok := r.sessions[key]
	if !ok {
		session = &models.InboundSession{
			ID:         utils.GenerateNanoIDWithPrefix("sess", 16),
			StorePath:  storePath,
			SessionKey: sessionKey,
			CreatedAt:  now,
		}
		r.sessions[key] = session
	}
	applyInbound(session, inbound, contextMap, now)

	turn := newTurn(session.ID, inbound)
	turn.ID = utils.GenerateNanoIDWithPrefix("turn", 16)
	turn.CreatedAt = now
	r.turns[key] = append(r.turns[key], turn)
	return nil
}

func (r *memorySessionRepository) UpsertRoute(ctx context.Context, storePath string, route dto.LastRouteUpdate) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.routes[memoryKey(storePath, route.SessionKey)] = models.SessionRoute{
		StorePath:  storePath,
		SessionKey: route.SessionKey,
		Channel:    route.Channel,
		To:         route.To,
		AccountID:  route.AccountID,
		UpdatedAt:  utils.Now(),
	}
	return nil
}

func (r *memorySessionRepository) GetRoute(ctx context.Context, storePath, sessionKey string) (*models.SessionRoute, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	route, ok := r.routes[memoryKey(storePath, sessionKey)]
	if !ok {
		return nil, mcerrors.ErrSessionNotFound
	}
	return &route, nil
}

func (r *memorySessionRepository) ListTurns(ctx context.Context, storePath, sessionKey string, limit int) ([]models.InboundTurn, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stored := r.turns[memoryKey(storePath, sessionKey)]
	turns := make([]models.InboundTurn, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		turns = append(turns, stored[i])
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	return turns, nil
}
