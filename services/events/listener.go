package events

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
)

// BaseEventListener carries the routing data every listener needs
type BaseEventListener struct {
	logger    logger.Logger
	eventType string
	queueName string
}

func NewBaseEventListener(logger logger.Logger, eventType, queueName string) BaseEventListener {
	return BaseEventListener{
		logger:    logger,
		eventType: eventType,
		queueName: queueName,
	}
}

func (b BaseEventListener) GetEventType() string {
	return b.eventType
}

func (b BaseEventListener) GetQueueName() string {
	return b.queueName
}

func (b BaseEventListener) Logger() logger.Logger {
	return b.logger
}

func (b BaseEventListener) ValidateBaseEvent(ctx context.Context, input any) (*dto.Event, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Events.ValidateEvent")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)

	message, ok := input.(dto.Event)
	if !ok {
		err := errors.New("unable to cast to event type")
		tracing.TraceErr(span, err)
		return nil, err
	}

	var err error
	switch {
	case message.Event.Data == nil:
		err = errors.New("message data is nil")
	case message.Event.EntityId == "":
		err = errors.New("entity id is empty")
	case message.Event.EventType == "":
		err = errors.New("event type is empty")
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &message, nil
}

func DecodeEventData[T any](ctx context.Context, event *dto.Event) (T, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Listener.DecodeEventData")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)

	var decoded T

	data, ok := event.Event.Data.(map[string]interface{})
	if !ok {
		err := errors.New("failed to cast event data to map[string]interface{}")
		tracing.TraceErr(span, err)
		return decoded, err
	}

	// round trip through json to reach the typed payload
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		tracing.TraceErr(span, err)
		return decoded, err
	}

	if err = json.Unmarshal(jsonBytes, &decoded); err != nil {
		tracing.TraceErr(span, err)
		return decoded, err
	}

	return decoded, nil
}

func GetEventType[T any]() string {
	var t T
	eventType := reflect.TypeOf(t)
	if eventType.Kind() == reflect.Ptr {
		eventType = eventType.Elem()
	}
	return eventType.Name()
}
