package repository

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/models"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) interfaces.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) GetUpdatedAt(ctx context.Context, storePath, sessionKey string) (*time.Time, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionRepository.GetUpdatedAt")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("sessionKey", sessionKey)

	var session models.InboundSession
	err := r.db.WithContext(ctx).
		Select("updated_at").
		Where("store_path = ? AND session_key = ?", storePath, sessionKey).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mcerrors.ErrSessionNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	updatedAt := session.UpdatedAt
	return &updatedAt, nil
}

// RecordInbound upserts the session row and appends the turn in one transaction
func (r *sessionRepository) RecordInbound(ctx context.Context, storePath, sessionKey string, inbound dto.InboundContext) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionRepository.RecordInbound")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, inbound.MessageSid)
	span.LogKV("sessionKey", sessionKey)

	contextMap, err := models.ToJSONMap(inbound)
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "encoding inbound context")
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := utils.Now()

		var session models.InboundSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("store_path = ? AND session_key = ?", storePath, sessionKey).
			First(&session).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			session = models.InboundSession{
				StorePath:  storePath,
				SessionKey: sessionKey,
				CreatedAt:  now,
			}
		case err != nil:
			return err
		}

		applyInbound(&session, inbound, contextMap, now)
		if err := tx.Save(&session).Error; err != nil {
			return err
		}

		turn := newTurn(session.ID, inbound)
		return tx.Create(&turn).Error
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "recording inbound session")
	}
	return nil
}

func (r *sessionRepository) UpsertRoute(ctx context.Context, storePath string, route dto.LastRouteUpdate) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionRepository.UpsertRoute")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("sessionKey", route.SessionKey)

	row := models.SessionRoute{
		StorePath:  storePath,
		SessionKey: route.SessionKey,
		Channel:    route.Channel,
		To:         route.To,
		AccountID:  route.AccountID,
		UpdatedAt:  utils.Now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_path"}, {Name: "session_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel", "to_address", "account_id", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "updating last route")
	}
	return nil
}

func (r *sessionRepository) GetRoute(ctx context.Context, storePath, sessionKey string) (*models.SessionRoute, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionRepository.GetRoute")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var route models.SessionRoute
	err := r.db.WithContext(ctx).
		Where("store_path = ? AND session_key = ?", storePath, sessionKey).
		First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mcerrors.ErrSessionNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &route, nil
}

func (r *sessionRepository) ListTurns(ctx context.Context, storePath, sessionKey string, limit int) ([]models.InboundTurn, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sessionRepository.ListTurns")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var turns []models.InboundTurn
	err := r.db.WithContext(ctx).
		Joins("JOIN inbound_sessions s ON s.id = inbound_turns.session_id").
		Where("s.store_path = ? AND s.session_key = ?", storePath, sessionKey).
		Order("inbound_turns.created_at DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return turns, nil
}

func applyInbound(session *models.InboundSession, inbound dto.InboundContext, contextMap models.JSONMap, now time.Time) {
	session.AccountID = inbound.AccountId
	session.Provider = inbound.Provider
	session.LastFrom = inbound.From
	session.LastSender = inbound.SenderName
	session.LastMessageID = inbound.MessageSid
	session.LastThreadID = inbound.MessageThreadId
	session.TurnCount++
	session.Context = contextMap
	session.LastInboundAt = &now
	session.UpdatedAt = now
}

func newTurn(sessionID string, inbound dto.InboundContext) models.InboundTurn {
	turn := models.InboundTurn{
		SessionID:  sessionID,
		MessageID:  inbound.MessageSid,
		ThreadID:   inbound.MessageThreadId,
		From:       inbound.From,
		SenderName: inbound.SenderName,
		Body:       inbound.Body,
		RawBody:    inbound.RawBody,
		MediaPaths: inbound.MediaPaths,
		MediaTypes: inbound.MediaTypes,
	}
	if inbound.Timestamp > 0 {
		sentAt := time.UnixMilli(inbound.Timestamp).UTC()
		turn.SentAt = &sentAt
	}
	return turn
}
