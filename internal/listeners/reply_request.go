package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/services/events"
)

// ReplyRequestListener turns queued reply requests into reply-all sends
type ReplyRequestListener struct {
	events.BaseEventListener
	outbound interfaces.OutboundService
}

func NewReplyRequestListener(logger logger.Logger, outbound interfaces.OutboundService) interfaces.EventListener {
	return &ReplyRequestListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.AgentMailReplyRequested](),
			events.QueueReplyRequests,
		),
		outbound: outbound,
	}
}

func (l *ReplyRequestListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ReplyRequestListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.AgentMailReplyRequested](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, request.ReplyToID)

	outboundRequest := dto.OutboundRequest{
		Text:      request.Text,
		MediaURL:  request.MediaURL,
		ReplyToID: request.ReplyToID,
		AccountID: request.AccountID,
	}

	var result *dto.OutboundResult
	if request.MediaURL != "" {
		result, err = l.outbound.SendMedia(ctx, outboundRequest)
	} else {
		result, err = l.outbound.SendText(ctx, outboundRequest)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		l.Logger().Errorf("[%s] reply request failed: %v", request.ReplyToID, err)
		return err
	}

	l.Logger().Infof("[%s] reply request delivered as %s", request.ReplyToID, result.MessageID)
	return nil
}
