package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"

	amqp "github.com/rabbitmq/amqp091-go"
)

type PublisherAlias string

const (
	ReportEventsPublisher PublisherAlias = "ReportEventsPublisher"
	RelayAlertsPublisher  PublisherAlias = "RelayAlertsPublisher"
	LogPublisher          PublisherAlias = "LogPublisher"
)

const publishTimeout = 5 * time.Second

var (
	publisherRegistry map[PublisherAlias]IRabbitmqPublisher
	registryMu        sync.RWMutex
)

// GetPublisher never returns nil: unknown aliases get a publisher that drops messages.
func GetPublisher(alias PublisherAlias) IRabbitmqPublisher {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if p, ok := publisherRegistry[alias]; ok {
		return p
	}
	return NopPublisher{}
}

func InitializePublisherRegistry(conn *amqp.Connection, publisherConfig []RabbitmqPublishersConfig) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	publisherRegistry = make(map[PublisherAlias]IRabbitmqPublisher)
	for _, publisher := range publisherConfig {
		channel, err := conn.Channel()
		if err != nil {
			return err
		}

		err = channel.ExchangeDeclare(
			publisher.Exchange,
			publisher.ExchangeType,
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		publisherRegistry[publisher.PublisherAlias] = NewPublisher(
			channel,
			publisher.Exchange,
			publisher.RoutingKey,
		)
		logger.DefaultOrNop().Infof("Registered publisher %s on exchange %s", publisher.PublisherAlias, publisher.Exchange)
	}

	return nil
}

type IRabbitmqPublisher interface {
	Publish(body utilities.Serializable) error
}

type RabbitmqPublisher struct {
	Channel    *amqp.Channel
	Exchange   string
	RoutingKey string
	mu         sync.Mutex
}

func NewPublisher(ch *amqp.Channel, exchange, routingKey string) *RabbitmqPublisher {
	return &RabbitmqPublisher{
		Channel:    ch,
		Exchange:   exchange,
		RoutingKey: routingKey,
	}
}

func (rp *RabbitmqPublisher) Publish(body utilities.Serializable) error {
	json, err := body.Serialize()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	rp.mu.Lock()
	defer rp.mu.Unlock()

	return rp.Channel.PublishWithContext(
		ctx,
		rp.Exchange,
		rp.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         json,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
}

type NopPublisher struct{}

func (NopPublisher) Publish(utilities.Serializable) error { return nil }
