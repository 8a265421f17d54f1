package participant

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

// Repository persists the participant registry. Rows are only written
// through the Event Room's transactions; nothing here renumbers turns
// or deletes rows, so turn numbers stay unique for the event's life.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

const participantColumns = `id, event_id, agent_id, display_name, turn_number, status,
	registered_at, turn_started_at, turn_ended_at`

// CreateParticipant inserts a REGISTERED participant with the next
// unused turn number for the event. The subselect runs under the
// event's row lock, so two joins can never draw the same number.
func (r *Repository) CreateParticipant(ctx context.Context, eventID uuid.UUID, agentID, displayName string, registeredAt time.Time) (*models.Participant, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO participants (id, event_id, agent_id, display_name, turn_number, status, registered_at)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(turn_number), 0) + 1 FROM participants WHERE event_id = $2),
			$5, $6)
		RETURNING `+participantColumns,
		uuid.New(), eventID, agentID, displayName, models.ParticipantStatusRegistered, registeredAt,
	)
	p, err := scanParticipant(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return p, nil
}

// GetParticipant returns (nil, nil) when the agent never joined.
func (r *Repository) GetParticipant(ctx context.Context, eventID uuid.UUID, agentID string) (*models.Participant, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE event_id = $1 AND agent_id = $2`,
		eventID, agentID,
	)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *Repository) ListParticipantsByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE event_id = $1
		ORDER BY turn_number ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants by event: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// SetParticipantStatus updates a participant's lifecycle state and its
// turn timestamps. Nil timestamps leave the stored values untouched.
func (r *Repository) SetParticipantStatus(ctx context.Context, id uuid.UUID, status models.ParticipantStatus, turnStartedAt, turnEndedAt *time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE participants SET
			status = $2,
			turn_started_at = COALESCE($3, turn_started_at),
			turn_ended_at = COALESCE($4, turn_ended_at)
		WHERE id = $1`,
		id, status, turnStartedAt, turnEndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set participant status: %w", err)
	}
	return nil
}

func scanParticipant(row pgx.Row) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ID, &p.EventID, &p.AgentID, &p.DisplayName, &p.TurnNumber, &p.Status,
		&p.RegisteredAt, &p.TurnStartedAt, &p.TurnEndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
