package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/griyaproperti/pemilu/go/internal/models"
)

// Store is the persistence boundary of the engine. RunInTx executes fn
// atomically: either every mutation made through the Tx lands, or none
// does. GetEventForUpdate inside the Tx locks the event row, so the
// critical section also holds across processes.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of storage operations available inside one transaction.
type Tx interface {
	// GetEventForUpdate loads an event and locks its row for the
	// duration of the transaction. Returns ErrEventNotFound if the
	// event does not exist.
	GetEventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, at time.Time) error
	SetTurnDeadline(ctx context.Context, eventID uuid.UUID, deadline *time.Time) error

	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error)
	// GetParticipant returns (nil, nil) when no participant exists for
	// the (event, agent) pair.
	GetParticipant(ctx context.Context, eventID uuid.UUID, agentID string) (*models.Participant, error)
	// CreateParticipant inserts a REGISTERED participant and assigns it
	// the next unused turn number for the event.
	CreateParticipant(ctx context.Context, eventID uuid.UUID, agentID, displayName string, registeredAt time.Time) (*models.Participant, error)
	SetParticipantStatus(ctx context.Context, participantID uuid.UUID, status models.ParticipantStatus, turnStartedAt, turnEndedAt *time.Time) error

	ListUnits(ctx context.Context, eventID uuid.UUID) ([]models.Unit, error)
	// ClaimUnit flips a unit from AVAILABLE to CLAIMED with a single
	// conditional update. It returns (nil, nil) when the update touched
	// zero rows: the unit is already claimed, belongs to another event,
	// or does not exist.
	ClaimUnit(ctx context.Context, eventID, unitID uuid.UUID, agentID string, at time.Time) (*models.Unit, error)

	CreateClaim(ctx context.Context, claim *models.Claim) error
	// GetClaimByIdempotencyKey returns (nil, nil) when no claim carries
	// the key within the event.
	GetClaimByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Claim, error)
	ListClaims(ctx context.Context, eventID uuid.UUID) ([]models.Claim, error)

	// AppendNotification assigns the next per-event sequence number,
	// persists the entry and fills in n.Seq and n.ID.
	AppendNotification(ctx context.Context, n *models.Notification) error
	LastSeq(ctx context.Context, eventID uuid.UUID) (int64, error)
	ListNotifications(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error)
}
