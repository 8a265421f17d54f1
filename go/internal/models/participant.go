package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantStatus defines the lifecycle state of a participant.
type ParticipantStatus string

const (
	ParticipantStatusRegistered ParticipantStatus = "REGISTERED"
	ParticipantStatusActive     ParticipantStatus = "ACTIVE"
	ParticipantStatusDone       ParticipantStatus = "DONE"
	ParticipantStatusCancelled  ParticipantStatus = "CANCELLED"
)

// Participant is one agent's membership and turn state within an event.
// Turn numbers are unique within an event and never reused, even when
// a participant cancels.
type Participant struct {
	ID            uuid.UUID         `json:"id"`
	EventID       uuid.UUID         `json:"event_id"`
	AgentID       string            `json:"agent_id"`
	DisplayName   string            `json:"display_name"`
	TurnNumber    int               `json:"turn_number"`
	Status        ParticipantStatus `json:"status"`
	RegisteredAt  time.Time         `json:"registered_at"`
	TurnStartedAt *time.Time        `json:"turn_started_at,omitempty"`
	TurnEndedAt   *time.Time        `json:"turn_ended_at,omitempty"`
}
