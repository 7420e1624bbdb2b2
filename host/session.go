package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	mcerrors "github.com/customeros/mailchannel/internal/errors"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
)

const defaultSessionStore = "~/.mailchannel/agents/{agentId}/sessions"

type sessionCapability struct {
	repository interfaces.SessionRepository
	log        logger.Logger
}

func NewSessionCapability(repository interfaces.SessionRepository, log logger.Logger) interfaces.SessionCapability {
	return &sessionCapability{
		repository: repository,
		log:        log,
	}
}

func (s *sessionCapability) ResolveStorePath(store, agentID string) string {
	store = strings.TrimSpace(store)
	if store == "" {
		store = defaultSessionStore
	}
	if agentID == "" {
		agentID = DefaultAgentID
	}
	store = strings.ReplaceAll(store, "{agentId}", agentID)

	if store == "~" || strings.HasPrefix(store, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			store = filepath.Join(home, strings.TrimPrefix(store, "~"))
		}
	}
	return filepath.Clean(store)
}

// ReadSessionUpdatedAt returns nil for unknown sessions and on storage failures
func (s *sessionCapability) ReadSessionUpdatedAt(ctx context.Context, storePath, sessionKey string) *time.Time {
	updatedAt, err := s.repository.GetUpdatedAt(ctx, storePath, sessionKey)
	if err != nil {
		if !errors.Is(err, mcerrors.ErrSessionNotFound) {
			s.log.Warnf("failed reading session %s: %v", sessionKey, err)
		}
		return nil
	}
	return updatedAt
}

func (s *sessionCapability) RecordInboundSession(ctx context.Context, request dto.RecordInboundSessionRequest) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SessionCapability.RecordInboundSession")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("sessionKey", request.SessionKey)

	onError := request.OnRecordError
	if onError == nil {
		onError = func(err error) {
			s.log.Warnf("failed recording session %s: %v", request.SessionKey, err)
		}
	}

	if err := s.repository.RecordInbound(ctx, request.StorePath, request.SessionKey, request.Ctx); err != nil {
		tracing.TraceErr(span, err)
		onError(err)
	}

	if request.UpdateLastRoute == nil {
		return
	}
	if err := s.repository.UpsertRoute(ctx, request.StorePath, *request.UpdateLastRoute); err != nil {
		tracing.TraceErr(span, err)
		onError(err)
	}
}
