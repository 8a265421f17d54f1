package events

import (
	"time"
)

// Event payload types shared between the room engine, the orchestrator
// and the gateway.

// ParticipantJoinedPayload is the payload for a ParticipantJoined notification.
type ParticipantJoinedPayload struct {
	AgentID     string    `json:"agent_id"`
	DisplayName string    `json:"display_name"`
	TurnNumber  int       `json:"turn_number"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ParticipantCancelledPayload is the payload for a ParticipantCancelled notification.
type ParticipantCancelledPayload struct {
	AgentID     string    `json:"agent_id"`
	DisplayName string    `json:"display_name"`
	TurnNumber  int       `json:"turn_number"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// TurnStartedPayload is the payload for a TurnStarted notification.
type TurnStartedPayload struct {
	AgentID     string     `json:"agent_id"`
	DisplayName string     `json:"display_name"`
	TurnNumber  int        `json:"turn_number"`
	StartedAt   time.Time  `json:"started_at"`
	TimeoutAt   *time.Time `json:"timeout_at,omitempty"`
}

// TurnExpiredPayload is the payload for a TurnExpired notification.
type TurnExpiredPayload struct {
	AgentID     string    `json:"agent_id"`
	DisplayName string    `json:"display_name"`
	TurnNumber  int       `json:"turn_number"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// ClaimMadePayload is the payload for a ClaimMade notification.
type ClaimMadePayload struct {
	ClaimID     string    `json:"claim_id"`
	AgentID     string    `json:"agent_id"`
	DisplayName string    `json:"display_name"`
	UnitID      string    `json:"unit_id"`
	Address     string    `json:"address"`
	TurnNumber  int       `json:"turn_number"`
	ClaimedAt   time.Time `json:"claimed_at"`
	ElapsedSec  int       `json:"elapsed_sec"`
}

// EventEndedPayload is the payload for an EventEnded notification.
type EventEndedPayload struct {
	EventID      string    `json:"event_id"`
	EndedAt      time.Time `json:"ended_at"`
	Reason       string    `json:"reason"` // "all_turns_complete" or "closed_by_organizer"
	ClaimedUnits int       `json:"claimed_units"`
}
