package event

import (
	"time"

	"github.com/google/uuid"
)

// CreateEventRequest represents a request to create a new selection event.
type CreateEventRequest struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	ScheduledStart    time.Time  `json:"scheduled_start"`
	ScheduledEnd      *time.Time `json:"scheduled_end,omitempty"`
	TurnTimeBudgetSec int        `json:"turn_time_budget_sec"`
}

// NextDeadline is the soonest turn deadline across active events,
// consumed by the orchestrator's scheduler loop.
type NextDeadline struct {
	EventID  uuid.UUID  `json:"event_id"`
	Deadline *time.Time `json:"deadline"`
}
