package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RIKUY-ORG/Rikuy/api/src/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxRetries   = 5
	defaultBatch = 100
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, eventType, aggregateId string, payload any) error
	GetEvent(ctx context.Context, eventId string) (model.OutboxEvent, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventId string) error
	UpdateRetryValue(ctx context.Context, eventId string) error
}

type outboxRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepo(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (or *outboxRepository) Enqueue(ctx context.Context, eventType, aggregateId string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return or.db.WithContext(ctx).Create(&model.OutboxEvent{
		EventId:     uuid.NewString(),
		EventType:   eventType,
		AggregateId: aggregateId,
		Payload:     string(body),
		CreatedAt:   or.now(),
	}).Error
}

func (or *outboxRepository) GetEvent(ctx context.Context, eventId string) (model.OutboxEvent, error) {
	var event model.OutboxEvent
	err := or.db.WithContext(ctx).First(&event, "event_id = ?", eventId).Error
	return event, err
}

func (or *outboxRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	if limit <= 0 {
		limit = defaultBatch
	}
	var events []model.OutboxEvent
	err := or.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("id").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (or *outboxRepository) MarkEventAsProcessed(ctx context.Context, eventId string) error {
	return or.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("event_id = ?", eventId).
		Updates(map[string]any{"processed": true, "processed_at": or.now()}).Error
}

// UpdateRetryValue counts a failed publish. Past maxRetries the event is parked as
// processed and needs a manual look.
func (or *outboxRepository) UpdateRetryValue(ctx context.Context, eventId string) error {
	event, err := or.GetEvent(ctx, eventId)
	if err != nil {
		return err
	}

	err = or.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("event_id = ?", eventId).
		Update("retry", event.Retry+1).Error
	if err != nil {
		return err
	}
	if event.Retry+1 < maxRetries {
		return nil
	}
	return or.MarkEventAsProcessed(ctx, eventId)
}
