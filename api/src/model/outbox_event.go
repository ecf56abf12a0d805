package model

import (
	"encoding/json"
	"time"

	"github.com/RIKUY-ORG/Rikuy/pkg/utilities"
)

const EventReportCreated = "report.created"

type OutboxEvent struct {
	Id          int    `gorm:"primaryKey;autoIncrement"`
	EventId     string `gorm:"uniqueIndex;not null"`
	EventType   string `gorm:"not null"`
	AggregateId string `gorm:"index"`
	Payload     string
	Retry       int
	Processed   bool `gorm:"index"`
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// EventMessage is what goes on the wire for an outbox event.
type EventMessage struct {
	EventId     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	AggregateId string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (em EventMessage) Serialize() ([]byte, error) {
	return utilities.Serialize[EventMessage](em)
}

func (oe OutboxEvent) MapToEventMessage() EventMessage {
	payload := oe.Payload
	if payload == "" {
		payload = "null"
	}
	return EventMessage{
		EventId:     oe.EventId,
		EventType:   oe.EventType,
		AggregateId: oe.AggregateId,
		Payload:     json.RawMessage(payload),
		CreatedAt:   oe.CreatedAt,
	}
}
