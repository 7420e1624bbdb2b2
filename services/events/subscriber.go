package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/interfaces"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
)

const appSourceSubscriber = "mailchannel-subscriber"

type SubscriberConfig struct {
	MaxRetries          int
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

type RabbitMQSubscriber struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	url             string
	logger          logger.Logger
	config          SubscriberConfig
	listeners       map[string]interfaces.EventListener
	listenerMutex   sync.RWMutex
	done            chan struct{}
	closeOnce       sync.Once
}

func NewRabbitMQSubscriber(rabbitmqURL string, logger logger.Logger, config *SubscriberConfig) (*RabbitMQSubscriber, error) {
	subscriber := newSubscriber(rabbitmqURL, logger, config)

	err := subscriber.connect()
	if err != nil {
		return nil, err
	}

	return subscriber, nil
}

func newSubscriber(rabbitmqURL string, logger logger.Logger, config *SubscriberConfig) *RabbitMQSubscriber {
	if config == nil {
		config = &SubscriberConfig{
			MaxRetries:          5,
			ReconnectBackoff:    time.Second,
			MaxReconnectBackoff: time.Second * 30,
		}
	}
	return &RabbitMQSubscriber{
		url:       rabbitmqURL,
		logger:    logger,
		config:    *config,
		listeners: make(map[string]interfaces.EventListener),
		done:      make(chan struct{}),
	}
}

func (r *RabbitMQSubscriber) RegisterListener(listener interfaces.EventListener) {
	r.listenerMutex.Lock()
	defer r.listenerMutex.Unlock()

	eventType := listener.GetEventType()
	r.listeners[eventType] = listener
	r.logger.Infof("Registered listener for event type: %s on queue: %s",
		eventType, listener.GetQueueName())
}

// ListenQueue consumes queueName in the background until Close
func (r *RabbitMQSubscriber) ListenQueue(queueName string) error {
	go func() {
		for {
			select {
			case <-r.done:
				return
			default:
			}

			if err := r.consume(queueName); err != nil {
				r.logger.Errorf("Consumer on queue %s failed: %v. Retrying...", queueName, err)
			} else {
				r.logger.Warnf("Connection lost for queue %s. Reconnecting...", queueName)
			}

			select {
			case <-r.done:
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	return nil
}

func (r *RabbitMQSubscriber) consume(queueName string) error {
	r.connectionMutex.Lock()
	connection := r.connection
	r.connectionMutex.Unlock()
	if connection == nil || connection.IsClosed() {
		return errors.New("connection is not open")
	}

	channel, err := connection.Channel()
	if err != nil {
		return errors.Wrap(err, "opening channel")
	}
	defer channel.Close()

	msgs, err := channel.Consume(
		queueName, // queue
		"",        // consumer tag
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return errors.Wrap(err, "registering consumer")
	}

	r.logger.Infof("Listening for messages on queue %s", queueName)
	for {
		select {
		case <-r.done:
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handleMessage(d, queueName)
		}
	}
}

func (r *RabbitMQSubscriber) handleMessage(d amqp091.Delivery, queueName string) {
	defer tracing.RecoverAndLogToJaeger(r.logger)

	err := r.processMessage(d.Body, queueName)
	if err != nil {
		r.logger.Errorf("Failed to process message on queue %s: %v", queueName, err)
		r.retryAckNack(d, false)
	} else {
		r.retryAckNack(d, true)
	}
}

func (r *RabbitMQSubscriber) processMessage(body []byte, queueName string) error {
	var event dto.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return errors.Wrap(err, "failed to unmarshal message")
	}

	ctx := utils.WithCustomContext(context.Background(), &utils.CustomContext{
		AppSource: utils.FirstNonEmpty(event.Metadata.AppSource, appSourceSubscriber),
		AccountID: event.Event.AccountId,
		InboxID:   event.Event.InboxId,
		RequestID: event.Metadata.RequestId,
	})

	ctx, span := tracing.StartRabbitMQMessageTracerSpanWithHeader(ctx, "RabbitMQSubscriber.ProcessMessage", event.Metadata.UberTraceId)
	defer span.Finish()
	span.LogKV("event_type", event.Event.EventType)
	span.LogKV("queue_name", queueName)

	r.listenerMutex.RLock()
	listener, exists := r.listeners[event.Event.EventType]
	r.listenerMutex.RUnlock()

	if !exists {
		r.logger.Infof("No listener found for event type: %s on queue: %s", event.Event.EventType, queueName)
		return nil
	}

	if listener.GetQueueName() != queueName {
		r.logger.Warnf("Event type %s received on wrong queue. Expected %s, got %s",
			event.Event.EventType, listener.GetQueueName(), queueName)
		return nil
	}

	err := listener.Handle(ctx, event)
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

func (r *RabbitMQSubscriber) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}
	r.connection = connection

	go r.watchConnection(connection)

	return nil
}

func (r *RabbitMQSubscriber) watchConnection(connection *amqp091.Connection) {
	notifyClose := connection.NotifyClose(make(chan *amqp091.Error, 1))
	if err, ok := <-notifyClose; !ok || err == nil {
		return
	}
	r.logger.Warn("RabbitMQ connection closed, attempting to reconnect")

	backoff := r.config.ReconnectBackoff
	for {
		select {
		case <-r.done:
			return
		default:
		}
		err := r.connect()
		if err == nil {
			return
		}
		r.logger.Errorf("Failed to reconnect subscriber: %v, retrying in %v", err, backoff)
		time.Sleep(backoff)
		backoff = nextBackoff(backoff, r.config.MaxReconnectBackoff)
	}
}

func (r *RabbitMQSubscriber) retryAckNack(d amqp091.Delivery, ack bool) {
	maxRetries := r.config.MaxRetries
	retryDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		var err error
		if ack {
			err = d.Ack(false)
		} else {
			err = d.Nack(false, false)
		}

		if err == nil {
			return
		}

		time.Sleep(retryDelay)
	}

	r.logger.Errorf("Failed to %s message after %d attempts",
		map[bool]string{true: "acknowledge", false: "negative acknowledge"}[ack],
		maxRetries)
}

func (r *RabbitMQSubscriber) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
	})

	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	if r.connection != nil && !r.connection.IsClosed() {
		return r.connection.Close()
	}
	return nil
}
