package events

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"

	"github.com/customeros/mailchannel/dto"
	"github.com/customeros/mailchannel/internal/enum"
	"github.com/customeros/mailchannel/internal/logger"
	"github.com/customeros/mailchannel/internal/tracing"
	"github.com/customeros/mailchannel/internal/utils"
	"github.com/customeros/mailchannel/services/accounts"
)

const (
	// Exchange names
	ExchangeMailchannel       = "mailchannel"
	ExchangeMailchannelDirect = "mailchannel-direct"
	ExchangeNotifications     = "notifications"
	ExchangeDeadLetter        = "dead-letter"

	// queues
	QueueNotifications = "notifications"
	QueueMailchannel   = "events-mailchannel"
	QueueReplyRequests = "agentmail-reply-requests"
	DLQMailchannel     = QueueMailchannel + "-dlq"
	DLQNotifications   = QueueNotifications + "-dlq"
	DLQReplyRequests   = QueueReplyRequests + "-dlq"

	// routing keys
	RoutingKeyDeadLetter   = "dead-letter"
	RoutingKeyReplyRequest = "mailchannel-reply-request"

	// Default configurations
	DefaultMessageTTL          = 240 * time.Hour // after TTL message moves to DLQ
	DefaultMaxRetries          = 3
	DefaultPublishTimeout      = 5 * time.Second
	DefaultReconnectBackoff    = time.Second
	DefaultMaxReconnectBackoff = 30 * time.Second
)

type PublisherConfig struct {
	MessageTTL          time.Duration
	MaxRetries          int
	PublishTimeout      time.Duration
	ReconnectBackoff    time.Duration
	MaxReconnectBackoff time.Duration
}

func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		MessageTTL:          DefaultMessageTTL,
		MaxRetries:          DefaultMaxRetries,
		PublishTimeout:      DefaultPublishTimeout,
		ReconnectBackoff:    DefaultReconnectBackoff,
		MaxReconnectBackoff: DefaultMaxReconnectBackoff,
	}
}

type RabbitMQPublisher struct {
	connection      *amqp091.Connection
	connectionMutex sync.Mutex
	publishChannel  *amqp091.Channel
	publishMutex    sync.Mutex
	url             string
	logger          logger.Logger
	confirms        chan amqp091.Confirmation
	config          PublisherConfig
	closed          bool
}

func NewRabbitMQPublisher(rabbitmqURL string, logger logger.Logger, config *PublisherConfig) (*RabbitMQPublisher, error) {
	if config == nil {
		config = DefaultPublisherConfig()
	}

	publisher := &RabbitMQPublisher{
		url:    rabbitmqURL,
		logger: logger,
		config: *config,
	}

	err := publisher.connect()
	if err != nil {
		return nil, err
	}

	return publisher, nil
}

// PublishFanoutEvent broadcasts a domain event to every consumer bound to the mailchannel exchange
func (r *RabbitMQPublisher) PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	return r.publishEventOnExchange(ctx, entityId, entityType, message, ExchangeMailchannel, "")
}

func (r *RabbitMQPublisher) PublishNotification(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishNotification")
	defer span.Finish()
	tracing.TagComponentPublisher(span)
	tracing.TagEntity(span, entityId)
	span.LogKV("entityType", entityType)

	err := r.publishEventOnExchange(ctx, entityId, entityType, message, ExchangeNotifications, "")
	if err != nil {
		tracing.TraceErr(span, err)
		r.logger.Errorf("Failed to publish notification: %v", err)
		return err
	}
	span.LogKV("result.published", true)
	return nil
}

// PublishReplyRequest queues an outbound reply for the reply request listener
func (r *RabbitMQPublisher) PublishReplyRequest(ctx context.Context, request dto.AgentMailReplyRequested) error {
	return r.publishEventOnExchange(ctx, request.ReplyToID, enum.EMAIL_REPLY, request, ExchangeMailchannelDirect, RoutingKeyReplyRequest)
}

func (r *RabbitMQPublisher) setupPublishChannel() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open publish channel")
	}

	err = channel.Confirm(false)
	if err != nil {
		channel.Close()
		return errors.Wrap(err, "Failed to enable publisher confirms")
	}

	r.confirms = channel.NotifyPublish(make(chan amqp091.Confirmation, 1))
	r.publishChannel = channel
	return nil
}

func (r *RabbitMQPublisher) handleReconnection(connection *amqp091.Connection) {
	notifyClose := connection.NotifyClose(make(chan *amqp091.Error, 1))
	err, ok := <-notifyClose
	if !ok || err == nil {
		// graceful shutdown
		return
	}
	r.logger.Warnf("RabbitMQ connection closed: %v, attempting to reconnect", err)

	backoff := r.config.ReconnectBackoff
	for {
		if r.isClosed() {
			return
		}
		err := r.connect()
		if err == nil {
			r.logger.Info("Successfully reconnected to RabbitMQ")
			return
		}
		r.logger.Errorf("Failed to reconnect: %v, retrying in %v", err, backoff)
		time.Sleep(backoff)
		backoff = nextBackoff(backoff, r.config.MaxReconnectBackoff)
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func (r *RabbitMQPublisher) isClosed() bool {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()
	return r.closed
}

func (r *RabbitMQPublisher) setupExchangesAndQueues() error {
	channel, err := r.connection.Channel()
	if err != nil {
		return errors.Wrap(err, "Failed to open channel for exchange/queue setup")
	}
	defer channel.Close()

	if err = declareExchanges(channel); err != nil {
		return err
	}
	return r.declareAndBindQueues(channel)
}

func declareExchanges(channel *amqp091.Channel) error {
	exchanges := []struct {
		name string
		kind string
	}{
		{ExchangeDeadLetter, "direct"},
		{ExchangeNotifications, "fanout"},
		{ExchangeMailchannel, "fanout"},
		{ExchangeMailchannelDirect, "direct"},
	}

	for _, e := range exchanges {
		err := channel.ExchangeDeclare(
			e.name,
			e.kind,
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return errors.Wrapf(err, "Failed to declare exchange %s", e.name)
		}
	}
	return nil
}

func (r *RabbitMQPublisher) declareAndBindQueues(channel *amqp091.Channel) error {
	bindings := []struct {
		queueName  string
		dlqName    string
		exchange   string
		routingKey string
	}{
		{QueueNotifications, DLQNotifications, ExchangeNotifications, ""},
		{QueueMailchannel, DLQMailchannel, ExchangeMailchannel, ""},
		{QueueReplyRequests, DLQReplyRequests, ExchangeMailchannelDirect, RoutingKeyReplyRequest},
	}

	for _, b := range bindings {
		if err := r.declareQueueWithDLQ(channel, b.queueName, b.dlqName); err != nil {
			return err
		}
		err := channel.QueueBind(b.queueName, b.routingKey, b.exchange, false, nil)
		if err != nil {
			return errors.Wrapf(err, "Failed to bind queue %s to exchange %s", b.queueName, b.exchange)
		}
	}
	return nil
}

func (r *RabbitMQPublisher) declareQueueWithDLQ(channel *amqp091.Channel, queueName string, dlqName string) error {
	_, err := channel.QueueDeclare(
		dlqName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare DLQ %s", dlqName)
	}

	err = channel.QueueBind(
		dlqName,
		RoutingKeyDeadLetter,
		ExchangeDeadLetter,
		false,
		nil,
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to bind DLQ %s to exchange", dlqName)
	}

	_, err = channel.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		queueArgs(r.config.MessageTTL),
	)
	if err != nil {
		return errors.Wrapf(err, "Failed to declare queue %s", queueName)
	}

	return nil
}

func queueArgs(ttl time.Duration) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    ExchangeDeadLetter,
		"x-dead-letter-routing-key": RoutingKeyDeadLetter,
		"x-message-ttl":             ttl.Milliseconds(),
	}
}

func (r *RabbitMQPublisher) connect() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()

	connection, err := amqp091.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "Failed to connect to RabbitMQ")
	}
	r.connection = connection

	err = r.setupExchangesAndQueues()
	if err != nil {
		return errors.Wrap(err, "Failed to setup exchanges and queues")
	}

	err = r.setupPublishChannel()
	if err != nil {
		return errors.Wrap(err, "Failed to setup publish channel")
	}

	go r.handleReconnection(connection)

	return nil
}

func (r *RabbitMQPublisher) ensureConnectionAndChannel() error {
	if r.connection == nil || r.connection.IsClosed() {
		if err := r.connect(); err != nil {
			return errors.Wrap(err, "Failed to establish connection")
		}
	}

	if r.publishChannel == nil || r.publishChannel.IsClosed() {
		if err := r.setupPublishChannel(); err != nil {
			return errors.Wrap(err, "Failed to establish channel")
		}
	}

	return nil
}

// BuildEvent wraps a payload in the event envelope shared by every mailchannel queue
func BuildEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) dto.Event {
	metadata := dto.EventMetadata{
		AppSource: utils.GetAppSourceFromContext(ctx),
		RequestId: utils.GetRequestIDFromContext(ctx),
		Timestamp: utils.Now().Format(time.RFC3339),
	}
	if span := opentracing.SpanFromContext(ctx); span != nil {
		metadata.UberTraceId = tracing.ExtractTextMapCarrier(span.Context())["uber-trace-id"]
	}

	return dto.Event{
		Event: dto.EventDetails{
			Id:         utils.GenerateNanoIDWithPrefix("event", 21),
			AccountId:  accounts.NormalizeAccountID(utils.GetAccountIDFromContext(ctx)),
			InboxId:    utils.GetInboxIDFromContext(ctx),
			EntityId:   entityId,
			EntityType: entityType,
			EventType:  eventTypeName(message),
			Data:       message,
		},
		Metadata: metadata,
	}
}

func eventTypeName(message interface{}) string {
	messageType := reflect.TypeOf(message)
	if messageType == nil {
		return ""
	}
	if messageType.Kind() == reflect.Ptr {
		messageType = messageType.Elem()
	}
	return messageType.Name()
}

func (r *RabbitMQPublisher) publishEventOnExchange(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishEventOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogKV("exchange", exchange, "routingKey", routingKey)

	return r.publishMessageOnExchange(ctx, BuildEvent(ctx, entityId, entityType, message), exchange, routingKey)
}

func (r *RabbitMQPublisher) publishMessageOnExchange(ctx context.Context, message interface{}, exchange, routingKey string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RabbitMQPublisher.PublishMessageOnExchange")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	tracing.LogObjectAsJson(span, "message", message)

	var lastErr error
	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		lastErr = r.publishWithConfirm(ctx, message, exchange, routingKey)
		if lastErr == nil {
			return nil
		}

		r.logger.Warnf("Publish attempt %d failed: %v", attempt+1, lastErr)
		if attempt < r.config.MaxRetries-1 {
			time.Sleep(time.Millisecond * 100 * time.Duration(attempt+1))
		}
	}

	err := errors.Wrap(lastErr, "Failed to publish message after all retries")
	tracing.TraceErr(span, err)
	return err
}

func (r *RabbitMQPublisher) publishWithConfirm(ctx context.Context, message interface{}, exchange, routingKey string) error {
	r.publishMutex.Lock()
	defer r.publishMutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := r.ensureConnectionAndChannel(); err != nil {
		return err
	}

	jsonBody, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "Failed to marshal message")
	}

	// fanout exchanges ignore the routing key
	actualRoutingKey := routingKey
	if exchange == ExchangeMailchannel || exchange == ExchangeNotifications {
		actualRoutingKey = ""
	}

	err = r.publishChannel.PublishWithContext(
		ctx,
		exchange,
		actualRoutingKey,
		true,  // mandatory
		false, // immediate
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         jsonBody,
			Timestamp:    utils.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "Failed to publish message")
	}

	select {
	case confirm := <-r.confirms:
		if !confirm.Ack {
			return errors.New("Message was not confirmed by server")
		}
	case <-time.After(r.config.PublishTimeout):
		return errors.New("Publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Close gracefully shuts down the publisher
func (r *RabbitMQPublisher) Close() error {
	r.connectionMutex.Lock()
	defer r.connectionMutex.Unlock()
	r.closed = true

	var err error
	if r.publishChannel != nil {
		err = r.publishChannel.Close()
		if err != nil {
			r.logger.Errorf("Error closing publish channel: %v", err)
		}
	}

	if r.connection != nil {
		if closeErr := r.connection.Close(); closeErr != nil {
			r.logger.Errorf("Error closing connection: %v", closeErr)
			if err == nil {
				err = closeErr
			}
		}
	}

	return err
}
