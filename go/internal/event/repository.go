package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/room"
	"github.com/griyaproperti/pemilu/go/internal/sqlutil"
)

// Repository persists events.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

const eventColumns = `id, title, status, scheduled_start, scheduled_end,
	turn_time_budget_sec, turn_deadline, started_at, ended_at, created_at, updated_at`

func (r *Repository) CreateEvent(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO events (id, title, status, scheduled_start, scheduled_end, turn_time_budget_sec)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+eventColumns,
		req.ID, req.Title, models.EventStatusPending, req.ScheduledStart, req.ScheduledEnd, req.TurnTimeBudgetSec,
	)
	ev, err := scanEvent(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return ev, nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, room.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// GetEventForUpdate locks the event row for the current transaction.
func (r *Repository) GetEventForUpdate(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, room.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event for update: %w", err)
	}
	return ev, nil
}

func (r *Repository) UpdateEventStatus(ctx context.Context, id uuid.UUID, status models.EventStatus, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE events SET
			status = $2,
			started_at = CASE WHEN $2 = 'ACTIVE' THEN $3 ELSE started_at END,
			ended_at = CASE WHEN $2 = 'ENDED' THEN $3 ELSE ended_at END,
			updated_at = now()
		WHERE id = $1`,
		id, status, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return nil
}

func (r *Repository) SetTurnDeadline(ctx context.Context, id uuid.UUID, deadline *time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE events SET turn_deadline = $2, updated_at = now() WHERE id = $1`, id, deadline)
	if err != nil {
		return fmt.Errorf("failed to set turn deadline: %w", err)
	}
	return nil
}

// FetchNextDeadline returns the active event with the soonest turn
// deadline, or nil when no active event has one armed.
func (r *Repository) FetchNextDeadline(ctx context.Context) (*NextDeadline, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, turn_deadline FROM events
		WHERE status = 'ACTIVE' AND turn_deadline IS NOT NULL
		ORDER BY turn_deadline ASC
		LIMIT 1`,
	)
	var nd NextDeadline
	if err := row.Scan(&nd.EventID, &nd.Deadline); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch next deadline: %w", err)
	}
	return &nd, nil
}

// FetchEventsDueForExpiry lists active events whose turn deadline has
// passed, oldest deadline first.
func (r *Repository) FetchEventsDueForExpiry(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM events
		WHERE status = 'ACTIVE' AND turn_deadline IS NOT NULL AND turn_deadline <= now()
		ORDER BY turn_deadline ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events due for expiry: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchEventsDueToStart lists pending events at or past their
// scheduled start, so the orchestrator can open them without waiting
// for the first request to arrive.
func (r *Repository) FetchEventsDueToStart(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM events
		WHERE status = 'PENDING' AND scheduled_start <= now()
		ORDER BY scheduled_start ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events due to start: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var ev models.Event
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.Status, &ev.ScheduledStart, &ev.ScheduledEnd,
		&ev.TurnTimeBudgetSec, &ev.TurnDeadline, &ev.StartedAt, &ev.EndedAt,
		&ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
