package models

import (
	"time"

	"github.com/google/uuid"
)

// Claim is an immutable record that a participant acquired a unit.
// Exactly one claim may exist per unit; claims are never revoked or
// reassigned, even if the claiming participant later cancels.
type Claim struct {
	ID             uuid.UUID     `json:"id"`
	EventID        uuid.UUID     `json:"event_id"`
	AgentID        string        `json:"agent_id"`
	UnitID         uuid.UUID     `json:"unit_id"`
	TurnNumber     int           `json:"turn_number"`
	IdempotencyKey string        `json:"idempotency_key"`
	ClaimedAt      time.Time     `json:"claimed_at"`
	Elapsed        time.Duration `json:"elapsed,omitempty"` // time on the clock before the claim landed
}
