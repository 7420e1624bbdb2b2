package events

import (
	"github.com/pkg/errors"

	"github.com/customeros/mailchannel/internal/logger"
)

type EventsService struct {
	Publisher  *RabbitMQPublisher
	Subscriber *RabbitMQSubscriber
}

func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (*EventsService, error) {
	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	subscriber, err := NewRabbitMQSubscriber(rabbitmqURL, log, nil)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}

	return &EventsService{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Subscriber != nil {
		if err := s.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("errors closing events service: %v", errs)
	}

	return nil
}
