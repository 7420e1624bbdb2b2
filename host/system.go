package host

import (
	"context"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/utils"
)

type systemCapability struct {
	publisher interfaces.EventPublisher
	log       logger.Logger
}

// NewSystemCapability logs system events when publisher is nil
func NewSystemCapability(publisher interfaces.EventPublisher, log logger.Logger) interfaces.SystemCapability {
	return &systemCapability{
		publisher: publisher,
		log:       log,
	}
}

func (s *systemCapability) EnqueueSystemEvent(ctx context.Context, text string, options dto.SystemEventOptions) {
	if s.publisher == nil {
		s.log.Infof("system event [%s]: %s", options.SessionKey, text)
		return
	}

	err := s.publisher.PublishNotification(ctx, options.ContextKey, enum.SYSTEM_EVENT, dto.SystemEventEnqueued{
		Text:       text,
		SessionKey: options.SessionKey,
		ContextKey: options.ContextKey,
		EnqueuedAt: utils.Now(),
	})
	if err != nil {
		s.log.Warnf("failed publishing system event %s: %v", options.ContextKey, err)
	}
}
