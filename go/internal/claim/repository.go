package claim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/sqlutil"
)

// Repository persists claims. Claim rows are written once by a
// successful arbitration and never updated or deleted.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

const claimColumns = `id, event_id, agent_id, unit_id, turn_number, idempotency_key, claimed_at, elapsed_ms`

func (r *Repository) CreateClaim(ctx context.Context, c *models.Claim) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO claims (id, event_id, agent_id, unit_id, turn_number, idempotency_key, claimed_at, elapsed_ms)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		c.ID, c.EventID, c.AgentID, c.UnitID, c.TurnNumber, c.IdempotencyKey, c.ClaimedAt, c.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to create claim: %w", err)
	}
	return nil
}

// GetClaimByIdempotencyKey returns (nil, nil) when no claim carries
// the key within the event.
func (r *Repository) GetClaimByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Claim, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE event_id = $1 AND idempotency_key = $2`,
		eventID, key,
	)
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get claim by idempotency key: %w", err)
	}
	return c, nil
}

func (r *Repository) ListClaimsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Claim, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE event_id = $1
		ORDER BY claimed_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims by event: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

func scanClaim(row pgx.Row) (*models.Claim, error) {
	var (
		c         models.Claim
		key       *string
		elapsedMs int64
	)
	err := row.Scan(&c.ID, &c.EventID, &c.AgentID, &c.UnitID, &c.TurnNumber, &key, &c.ClaimedAt, &elapsedMs)
	if err != nil {
		return nil, err
	}
	if key != nil {
		c.IdempotencyKey = *key
	}
	c.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return &c, nil
}
