// Package outbox publishes report events written alongside each report, retrying until
// the broker accepts them.
package outbox

import (
	"context"
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/logger"
	"github.com/RIKUY-ORG/Rikuy/pkg/rabbitmq"

	"github.com/robfig/cron"
)

const (
	outboxWorkerName = "OutboxCronWorker"
	DefaultSchedule  = "@every 1m"
	processTimeout   = 30 * time.Second
)

type OutboxWorker struct {
	publisher  rabbitmq.IRabbitmqPublisher
	repository OutboxRepository
	cron       *cron.Cron
	schedule   string
	log        *logger.Logger
}

func NewOutboxWorker(repository OutboxRepository, publisher rabbitmq.IRabbitmqPublisher, schedule string, log *logger.Logger) *OutboxWorker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OutboxWorker{
		publisher:  publisher,
		repository: repository,
		cron:       cron.New(),
		schedule:   schedule,
		log:        log.Named("outbox"),
	}
}

func (ow *OutboxWorker) GetServiceName() string {
	return outboxWorkerName
}

func (ow *OutboxWorker) StartService() {
	err := ow.cron.AddFunc(ow.schedule, func() { ow.ProcessOutboxEvents() })
	if err != nil {
		ow.log.Errorf(err, "Could not add function to %s", outboxWorkerName)
		return
	}

	ow.cron.Start()
}

func (ow *OutboxWorker) StopService() {
	ow.cron.Stop()
}

// ProcessOutboxEvents publishes one batch and returns how many events went out.
func (ow *OutboxWorker) ProcessOutboxEvents() int {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	events, err := ow.repository.GetUnprocessedEvents(ctx, 0)
	if err != nil {
		ow.log.Error(err, "Could not read events from database")
		return 0
	}

	published := 0
	for _, e := range events {
		if err := ow.publisher.Publish(e.MapToEventMessage()); err != nil {
			ow.log.Errorf(err, "Can't publish event %s to queue", e.EventId)
			if err := ow.repository.UpdateRetryValue(ctx, e.EventId); err != nil {
				ow.log.Error(err, "Could not update event retry count")
			}
			continue
		}
		if err := ow.repository.MarkEventAsProcessed(ctx, e.EventId); err != nil {
			ow.log.Error(err, "Could not mark event as processed")
			continue
		}
		published++
	}
	if published > 0 {
		ow.log.Debugf("Published %d outbox events", published)
	}
	return published
}
