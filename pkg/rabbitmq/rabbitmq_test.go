package rabbitmq_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/RIKUY-ORG/Rikuy/pkg/rabbitmq"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"
	"github.com/RIKUY-ORG/Rikuy/pkg/utilities/timeutil"

	"github.com/rs/zerolog"
)

type recordingPublisher struct {
	bodies [][]byte
	err    error
}

func (p *recordingPublisher) Publish(body utilities.Serializable) error {
	if p.err != nil {
		return p.err
	}
	b, err := body.Serialize()
	if err != nil {
		return err
	}
	p.bodies = append(p.bodies, b)
	return nil
}

func TestRabbitmqConfigConvertToDomain(t *testing.T) {
	t.Setenv("RABBITMQ_USER", "")
	t.Setenv("RABBITMQ_PASSWORD", "")

	jsonConfig := rabbitmq.RabbimqConfigJson{
		Enabled:  true,
		User:     "guest",
		Password: "guest",
		PublishersConfig: []rabbitmq.RabbitmqPublishersConfigJson{
			{PublisherAlias: "ReportEventsPublisher", Exchange: "rikuy.reports", RoutingKey: "report.created"},
			{PublisherAlias: "RelayAlertsPublisher", Exchange: "rikuy.alerts", ExchangeType: "fanout"},
		},
	}

	config := jsonConfig.ConvertToDomain()

	if config.Host != "rabbitmq" {
		t.Errorf("Expected default host, got %s", config.Host)
	}
	if config.Port != 5672 {
		t.Errorf("Expected default port 5672, got %d", config.Port)
	}
	if len(config.PublishersConfig) != 2 {
		t.Fatalf("Expected 2 publishers, got %d", len(config.PublishersConfig))
	}
	if config.PublishersConfig[0].PublisherAlias != rabbitmq.ReportEventsPublisher {
		t.Errorf("Unexpected alias %s", config.PublishersConfig[0].PublisherAlias)
	}
	if config.PublishersConfig[0].ExchangeType != "topic" {
		t.Errorf("Expected default exchange type topic, got %s", config.PublishersConfig[0].ExchangeType)
	}
	if config.PublishersConfig[1].ExchangeType != "fanout" {
		t.Errorf("Expected explicit exchange type to win, got %s", config.PublishersConfig[1].ExchangeType)
	}
}

func TestRabbitmqCredentialsFromEnv(t *testing.T) {
	t.Setenv("RABBITMQ_USER", "rikuy")
	t.Setenv("RABBITMQ_PASSWORD", "s3cret")

	config := rabbitmq.RabbimqConfigJson{User: "guest", Password: "guest"}.ConvertToDomain()

	if config.User != "rikuy" || config.Password != "s3cret" {
		t.Errorf("Expected env credentials, got %s/%s", config.User, config.Password)
	}
}

func TestGetPublisherUnknownAliasIsNop(t *testing.T) {
	publisher := rabbitmq.GetPublisher("DoesNotExist")
	if publisher == nil {
		t.Fatal("Expected non-nil publisher")
	}
	if err := publisher.Publish(nil); err != nil {
		t.Errorf("Nop publisher should never fail, got %v", err)
	}
}

func TestLoggerSinkPublishesMessage(t *testing.T) {
	publisher := &recordingPublisher{}
	sink := rabbitmq.CreateRabbitmqLoggerSink("rikuy-api", publisher)

	sink("relayer balance critical", zerolog.ErrorLevel, timeutil.TimeUTC{T: 1700000000})

	if len(publisher.bodies) != 1 {
		t.Fatalf("Expected 1 published message, got %d", len(publisher.bodies))
	}

	var msg map[string]any
	if err := json.Unmarshal(publisher.bodies[0], &msg); err != nil {
		t.Fatalf("Published body is not JSON: %v", err)
	}
	if msg["service"] != "rikuy-api" || msg["level"] != "error" || msg["message"] != "relayer balance critical" {
		t.Errorf("Unexpected message %v", msg)
	}
	if msg["timestamp"] != "2023-11-14T22:13:20Z" {
		t.Errorf("Unexpected timestamp %v", msg["timestamp"])
	}
}

func TestLoggerSinkSwallowsPublishErrors(t *testing.T) {
	sink := rabbitmq.CreateRabbitmqLoggerSink("rikuy-api", &recordingPublisher{err: errors.New("channel closed")})

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Sink should not panic, got %v", r)
		}
	}()
	sink("message", zerolog.InfoLevel, timeutil.NowUTC())
}
