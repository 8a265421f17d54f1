package unit

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

// Repository persists the unit pool. Unit content is immutable once an
// event starts; only the claim fields ever change, and only through
// ClaimUnit's conditional update.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

const unitColumns = `id, event_id, property_ref, address, price, image_url, status, claimed_by, claimed_at`

// CreateUnitRequest mirrors a property record into an event's pool.
type CreateUnitRequest struct {
	ID          uuid.UUID `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	PropertyRef string    `json:"property_ref"`
	Address     string    `json:"address"`
	Price       int64     `json:"price"`
	ImageURL    string    `json:"image_url"`
}

func (r *Repository) CreateUnit(ctx context.Context, req CreateUnitRequest) (*models.Unit, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO units (id, event_id, property_ref, address, price, image_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+unitColumns,
		req.ID, req.EventID, req.PropertyRef, req.Address, req.Price, req.ImageURL, models.UnitStatusAvailable,
	)
	u, err := scanUnit(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}
	return u, nil
}

func (r *Repository) ListUnitsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Unit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+unitColumns+` FROM units
		WHERE event_id = $1
		ORDER BY address ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list units by event: %w", err)
	}
	defer rows.Close()

	var units []models.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, *u)
	}
	return units, rows.Err()
}

// ClaimUnit grants a unit with a single conditional update: the status
// check in the WHERE clause is the cross-process claim arbitration.
// Returns (nil, nil) when zero rows matched, meaning the unit is gone
// (already claimed, wrong event, or unknown).
func (r *Repository) ClaimUnit(ctx context.Context, eventID, unitID uuid.UUID, agentID string, at time.Time) (*models.Unit, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE units SET status = $4, claimed_by = $5, claimed_at = $6
		WHERE id = $1 AND event_id = $2 AND status = $3
		RETURNING `+unitColumns,
		unitID, eventID, models.UnitStatusAvailable, models.UnitStatusClaimed, agentID, at,
	)
	u, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim unit: %w", err)
	}
	return u, nil
}

// CountAvailableUnits reports how many units remain claimable.
func (r *Repository) CountAvailableUnits(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM units WHERE event_id = $1 AND status = $2`,
		eventID, models.UnitStatusAvailable,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count available units: %w", err)
	}
	return count, nil
}

func scanUnit(row pgx.Row) (*models.Unit, error) {
	var u models.Unit
	err := row.Scan(
		&u.ID, &u.EventID, &u.PropertyRef, &u.Address, &u.Price, &u.ImageURL,
		&u.Status, &u.ClaimedBy, &u.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
