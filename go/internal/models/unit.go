package models

import (
	"time"

	"github.com/google/uuid"
)

// UnitStatus defines the claim state of a unit.
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "AVAILABLE"
	UnitStatusClaimed   UnitStatus = "CLAIMED"
)

// Unit is a claimable property-backed resource within an event.
// Display fields are mirrored from the property record at event
// setup time; only the claim fields change after the event starts.
type Unit struct {
	ID          uuid.UUID  `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	PropertyRef string     `json:"property_ref"`
	Address     string     `json:"address"`
	Price       int64      `json:"price"`
	ImageURL    string     `json:"image_url,omitempty"`
	Status      UnitStatus `json:"status"`
	ClaimedBy   *string    `json:"claimed_by,omitempty"` // agent ID
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
}
