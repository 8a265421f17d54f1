package models

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus defines the lifecycle state of a selection event.
type EventStatus string

const (
	EventStatusPending EventStatus = "PENDING"
	EventStatusActive  EventStatus = "ACTIVE"
	EventStatusEnded   EventStatus = "ENDED"
)

// Event represents one scheduled property selection session.
type Event struct {
	ID                uuid.UUID   `json:"id"`
	Title             string      `json:"title"`
	Status            EventStatus `json:"status"`
	ScheduledStart    time.Time   `json:"scheduled_start"`
	ScheduledEnd      *time.Time  `json:"scheduled_end,omitempty"`
	TurnTimeBudgetSec int         `json:"turn_time_budget_sec"` // 0 means no per-turn timeout
	TurnDeadline      *time.Time  `json:"turn_deadline,omitempty"`
	StartedAt         *time.Time  `json:"started_at,omitempty"`
	EndedAt           *time.Time  `json:"ended_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
