// Package pgstore backs the room engine with Postgres. Each engine
// transaction binds the domain repositories to one pgx transaction, so
// a claim's unit flip, claim row, registry update and notification all
// commit or roll back together.
package pgstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/griyaproperti/pemilu/go/internal/claim"
	"github.com/griyaproperti/pemilu/go/internal/event"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/outbox"
	"github.com/griyaproperti/pemilu/go/internal/participant"
	"github.com/griyaproperti/pemilu/go/internal/room"
	"github.com/griyaproperti/pemilu/go/internal/sqlutil"
	"github.com/griyaproperti/pemilu/go/internal/unit"
)

// Store implements room.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ room.Store = (*Store)(nil)

func (s *Store) RunInTx(ctx context.Context, fn func(tx room.Tx) error) error {
	return sqlutil.Run(ctx, s.pool, func(pgtx pgx.Tx) error {
		return fn(&storeTx{
			events:        event.NewRepository(pgtx),
			units:         unit.NewRepository(pgtx),
			participants:  participant.NewRepository(pgtx),
			claims:        claim.NewRepository(pgtx),
			notifications: outbox.NewRepository(pgtx),
		})
	})
}

// storeTx delegates room.Tx calls to transaction-bound repositories.
type storeTx struct {
	events        *event.Repository
	units         *unit.Repository
	participants  *participant.Repository
	claims        *claim.Repository
	notifications *outbox.Repository
}

var _ room.Tx = (*storeTx)(nil)

func (t *storeTx) GetEventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	return t.events.GetEventForUpdate(ctx, eventID)
}

func (t *storeTx) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, at time.Time) error {
	return t.events.UpdateEventStatus(ctx, eventID, status, at)
}

func (t *storeTx) SetTurnDeadline(ctx context.Context, eventID uuid.UUID, deadline *time.Time) error {
	return t.events.SetTurnDeadline(ctx, eventID, deadline)
}

func (t *storeTx) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	return t.participants.ListParticipantsByEvent(ctx, eventID)
}

func (t *storeTx) GetParticipant(ctx context.Context, eventID uuid.UUID, agentID string) (*models.Participant, error) {
	return t.participants.GetParticipant(ctx, eventID, agentID)
}

func (t *storeTx) CreateParticipant(ctx context.Context, eventID uuid.UUID, agentID, displayName string, registeredAt time.Time) (*models.Participant, error) {
	return t.participants.CreateParticipant(ctx, eventID, agentID, displayName, registeredAt)
}

func (t *storeTx) SetParticipantStatus(ctx context.Context, participantID uuid.UUID, status models.ParticipantStatus, turnStartedAt, turnEndedAt *time.Time) error {
	return t.participants.SetParticipantStatus(ctx, participantID, status, turnStartedAt, turnEndedAt)
}

func (t *storeTx) ListUnits(ctx context.Context, eventID uuid.UUID) ([]models.Unit, error) {
	return t.units.ListUnitsByEvent(ctx, eventID)
}

func (t *storeTx) ClaimUnit(ctx context.Context, eventID, unitID uuid.UUID, agentID string, at time.Time) (*models.Unit, error) {
	return t.units.ClaimUnit(ctx, eventID, unitID, agentID, at)
}

func (t *storeTx) CreateClaim(ctx context.Context, c *models.Claim) error {
	return t.claims.CreateClaim(ctx, c)
}

func (t *storeTx) GetClaimByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Claim, error) {
	return t.claims.GetClaimByIdempotencyKey(ctx, eventID, key)
}

func (t *storeTx) ListClaims(ctx context.Context, eventID uuid.UUID) ([]models.Claim, error) {
	return t.claims.ListClaimsByEvent(ctx, eventID)
}

func (t *storeTx) AppendNotification(ctx context.Context, n *models.Notification) error {
	return t.notifications.AppendNotification(ctx, n)
}

func (t *storeTx) LastSeq(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return t.notifications.LastSeq(ctx, eventID)
}

func (t *storeTx) ListNotifications(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error) {
	return t.notifications.ListNotifications(ctx, eventID, afterSeq)
}
