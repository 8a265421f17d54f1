package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/sqlutil"
)

// Repository persists the notifications table. The table is both the
// per-event activity log (ordered by seq, replayable by clients) and
// the transactional outbox the relay drains into JetStream.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

const notificationColumns = `id, event_id, seq, event_type, actor_name, message, payload, created_at`

// AppendNotification assigns the next per-event sequence number and
// inserts the entry. The subselect is safe because every caller holds
// the event's row lock for the duration of the transaction.
func (r *Repository) AppendNotification(ctx context.Context, n *models.Notification) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO notifications (id, event_id, seq, event_type, actor_name, message, payload, created_at)
		VALUES ($1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM notifications WHERE event_id = $2),
			$3, $4, $5, $6, $7)
		RETURNING seq`,
		n.ID, n.EventID, n.Type, n.ActorName, n.Message, n.Data, n.Timestamp,
	)
	if err := row.Scan(&n.Seq); err != nil {
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return nil
}

// LastSeq returns the highest sequence number for an event, 0 when the
// log is empty.
func (r *Repository) LastSeq(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM notifications WHERE event_id = $1`,
		eventID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to get last seq: %w", err)
	}
	return seq, nil
}

// ListNotifications returns an event's log entries after the given
// sequence number, in order.
func (r *Repository) ListNotifications(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE event_id = $1 AND seq > $2
		ORDER BY seq ASC`,
		eventID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// FetchUnsent returns notifications not yet published to the message
// bus, oldest first. Per-event ordering is preserved because rows are
// created in seq order and fetched in creation order.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]models.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE sent_at IS NULL
		ORDER BY created_at ASC, seq ASC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

// FetchByID loads a single notification row.
func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	var n models.Notification
	if err := row.Scan(&n.ID, &n.EventID, &n.Seq, &n.Type, &n.ActorName, &n.Message, &n.Data, &n.Timestamp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch notification: %w", err)
	}
	return &n, nil
}

// MarkSent stamps a notification as published.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE notifications SET sent_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

func collectNotifications(rows pgx.Rows) ([]models.Notification, error) {
	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.Seq, &n.Type, &n.ActorName, &n.Message, &n.Data, &n.Timestamp); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				break
			}
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
