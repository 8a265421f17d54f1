package api

import (
	"time"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

// CreateEventRequest creates a selection event together with its unit
// pool. The pool is fixed for the lifetime of the event.
type CreateEventRequest struct {
	Title             string      `json:"title"`
	ScheduledStart    time.Time   `json:"scheduled_start"`
	ScheduledEnd      *time.Time  `json:"scheduled_end,omitempty"`
	TurnTimeBudgetSec int         `json:"turn_time_budget_sec"`
	Units             []UnitInput `json:"units"`
}

// UnitInput is one property offered in the event.
type UnitInput struct {
	PropertyRef string `json:"property_ref"`
	Address     string `json:"address"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
}

// CreateEventResponse returns the created event and its pool.
type CreateEventResponse struct {
	Event *models.Event `json:"event"`
	Units []models.Unit `json:"units"`
}

// JoinRequest registers an agent as a participant.
type JoinRequest struct {
	AgentID     string `json:"agent_id"`
	DisplayName string `json:"display_name"`
}

// SubmitClaimRequest is a participant's attempt to acquire a unit. The
// idempotency key may also be supplied via the Idempotency-Key header.
type SubmitClaimRequest struct {
	AgentID        string `json:"agent_id"`
	UnitID         string `json:"unit_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CancelRequest withdraws a participant.
type CancelRequest struct {
	AgentID string `json:"agent_id"`
}

// ActivityResponse is a page of the activity log.
type ActivityResponse struct {
	Notifications []models.Notification `json:"notifications"`
	LastSeq       int64                 `json:"last_seq"`
}

// ErrorResponse is the JSON error body for all endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
