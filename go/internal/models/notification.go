package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType tags an entry in the event activity log.
type NotificationType string

const (
	NotificationTypeParticipantJoined    NotificationType = "ParticipantJoined"
	NotificationTypeParticipantCancelled NotificationType = "ParticipantCancelled"
	NotificationTypeTurnStarted          NotificationType = "TurnStarted"
	NotificationTypeTurnExpired          NotificationType = "TurnExpired"
	NotificationTypeClaimMade            NotificationType = "ClaimMade"
	NotificationTypeEventEnded           NotificationType = "EventEnded"
)

// Notification is one entry in an event's append-only activity log.
// Seq is assigned per event, starts at 1 and never has gaps; the log
// reflects the total order of accepted mutations for that event.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	EventID   uuid.UUID        `json:"event_id"`
	Seq       int64            `json:"seq"`
	Type      NotificationType `json:"type"`
	ActorName string           `json:"actor_name,omitempty"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

// Snapshot is a consistent read of one event's full state, served to
// clients before they subscribe to the live stream. LastSeq is the
// highest activity-log sequence included in the snapshot; subscribers
// drop incoming notifications with seq <= LastSeq.
type Snapshot struct {
	Event        *Event        `json:"event"`
	Participants []Participant `json:"participants"`
	Units        []Unit        `json:"units"`
	Claims       []Claim       `json:"claims"`
	CurrentTurn  *Participant  `json:"current_turn,omitempty"`
	NextTurn     *Participant  `json:"next_turn,omitempty"`
	LastSeq      int64         `json:"last_seq"`
}
