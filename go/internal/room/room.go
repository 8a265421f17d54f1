package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/griyaproperti/pemilu/go/internal/events"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Room owns one event's mutable state. Every mutation goes through the
// room's mutex and a single storage transaction, so all accepted
// mutations for an event form one total order and the activity log
// reflects exactly that order. Reads (Snapshot, Activity) do not take
// the mutex; they see a consistent transaction snapshot instead.
type Room struct {
	eventID uuid.UUID
	store   Store
	clock   clockwork.Clock

	mu sync.Mutex
}

// NewRoom creates a room for one event. Rooms are cheap; the Manager
// caches them per event ID.
func NewRoom(eventID uuid.UUID, store Store, clock clockwork.Clock) *Room {
	return &Room{
		eventID: eventID,
		store:   store,
		clock:   clock,
	}
}

// EventID returns the event this room serves.
func (r *Room) EventID() uuid.UUID {
	return r.eventID
}

// ClaimRequest is a participant's attempt to acquire a unit. The
// idempotency key is client-generated; retrying a timed-out request
// with the same key can never produce a second claim.
type ClaimRequest struct {
	AgentID        string
	UnitID         uuid.UUID
	IdempotencyKey string
}

// Join registers an agent as a participant of the event. Valid only
// while the event is ACTIVE. The new participant gets the next unused
// turn number and, when nobody is on the clock yet, is activated
// immediately.
func (r *Room) Join(ctx context.Context, agentID, displayName string) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var participant *models.Participant
	err := r.store.RunInTx(ctx, func(tx Tx) error {
		now := r.clock.Now().UTC()
		ev, err := r.loadEvent(ctx, tx, now)
		if err != nil {
			return err
		}
		if err := checkActionable(ev); err != nil {
			return err
		}

		existing, err := tx.GetParticipant(ctx, r.eventID, agentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadyJoined
		}

		participant, err = tx.CreateParticipant(ctx, r.eventID, agentID, displayName, now)
		if err != nil {
			return err
		}

		payload := events.ParticipantJoinedPayload{
			AgentID:     agentID,
			DisplayName: displayName,
			TurnNumber:  participant.TurnNumber,
			JoinedAt:    now,
		}
		msg := fmt.Sprintf("%s joined the selection (turn %d)", displayName, participant.TurnNumber)
		if err := r.notify(ctx, tx, models.NotificationTypeParticipantJoined, displayName, msg, now, payload); err != nil {
			return err
		}

		return r.advanceTurns(ctx, tx, ev, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", r.eventID.String()).
		Str("agent_id", agentID).
		Int("turn_number", participant.TurnNumber).
		Msg("participant joined")
	return participant, nil
}

// SubmitClaim arbitrates a claim attempt. Preconditions are checked in
// order: event ACTIVE, agent on the clock, unit AVAILABLE. The loser of
// a duplicate-request race gets ErrUnitAlreadyClaimed. On success the
// unit flips to CLAIMED, the claim row is written, the participant is
// marked DONE and the turn advances, all in one transaction.
func (r *Room) SubmitClaim(ctx context.Context, req ClaimRequest) (*models.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var claim *models.Claim
	err := r.store.RunInTx(ctx, func(tx Tx) error {
		now := r.clock.Now().UTC()
		ev, err := r.loadEvent(ctx, tx, now)
		if err != nil {
			return err
		}
		if err := checkActionable(ev); err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			existing, err := tx.GetClaimByIdempotencyKey(ctx, r.eventID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				claim = existing
				return nil
			}
		}

		participant, err := tx.GetParticipant(ctx, r.eventID, req.AgentID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status != models.ParticipantStatusActive {
			return ErrNotYourTurn
		}

		unit, err := tx.ClaimUnit(ctx, r.eventID, req.UnitID, req.AgentID, now)
		if err != nil {
			return err
		}
		if unit == nil {
			return ErrUnitAlreadyClaimed
		}

		claim = &models.Claim{
			ID:             uuid.New(),
			EventID:        r.eventID,
			AgentID:        req.AgentID,
			UnitID:         unit.ID,
			TurnNumber:     participant.TurnNumber,
			IdempotencyKey: req.IdempotencyKey,
			ClaimedAt:      now,
		}
		if participant.TurnStartedAt != nil {
			claim.Elapsed = now.Sub(*participant.TurnStartedAt)
		}
		if err := tx.CreateClaim(ctx, claim); err != nil {
			return err
		}

		if err := tx.SetParticipantStatus(ctx, participant.ID, models.ParticipantStatusDone, nil, &now); err != nil {
			return err
		}

		payload := events.ClaimMadePayload{
			ClaimID:     claim.ID.String(),
			AgentID:     req.AgentID,
			DisplayName: participant.DisplayName,
			UnitID:      unit.ID.String(),
			Address:     unit.Address,
			TurnNumber:  participant.TurnNumber,
			ClaimedAt:   now,
			ElapsedSec:  int(claim.Elapsed.Seconds()),
		}
		msg := fmt.Sprintf("%s claimed %s", participant.DisplayName, unit.Address)
		if err := r.notify(ctx, tx, models.NotificationTypeClaimMade, participant.DisplayName, msg, now, payload); err != nil {
			return err
		}

		return r.advanceTurns(ctx, tx, ev, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("event_id", r.eventID.String()).
		Str("agent_id", req.AgentID).
		Str("unit_id", req.UnitID.String()).
		Msg("claim granted")
	return claim, nil
}

// Cancel withdraws a participant from the event. Their turn number is
// never reused and any claims they already made stand. Terminal
// participants (DONE, CANCELLED) cannot cancel.
func (r *Room) Cancel(ctx context.Context, agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.RunInTx(ctx, func(tx Tx) error {
		now := r.clock.Now().UTC()
		ev, err := r.loadEvent(ctx, tx, now)
		if err != nil {
			return err
		}
		if err := checkActionable(ev); err != nil {
			return err
		}

		participant, err := tx.GetParticipant(ctx, r.eventID, agentID)
		if err != nil {
			return err
		}
		if participant == nil {
			return ErrNotYourTurn
		}
		switch participant.Status {
		case models.ParticipantStatusDone, models.ParticipantStatusCancelled:
			return nil // already terminal, nothing to do
		}

		wasActive := participant.Status == models.ParticipantStatusActive
		var turnEnd *time.Time
		if wasActive {
			turnEnd = &now
		}
		if err := tx.SetParticipantStatus(ctx, participant.ID, models.ParticipantStatusCancelled, nil, turnEnd); err != nil {
			return err
		}

		payload := events.ParticipantCancelledPayload{
			AgentID:     agentID,
			DisplayName: participant.DisplayName,
			TurnNumber:  participant.TurnNumber,
			CancelledAt: now,
		}
		msg := fmt.Sprintf("%s left the selection", participant.DisplayName)
		if err := r.notify(ctx, tx, models.NotificationTypeParticipantCancelled, participant.DisplayName, msg, now, payload); err != nil {
			return err
		}

		return r.advanceTurns(ctx, tx, ev, now)
	})
}

// Close ends the event on organizer request. Valid only from ACTIVE.
func (r *Room) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.RunInTx(ctx, func(tx Tx) error {
		now := r.clock.Now().UTC()
		ev, err := r.loadEvent(ctx, tx, now)
		if err != nil {
			return err
		}
		if ev.Status == models.EventStatusEnded {
			return ErrEventClosed
		}
		if ev.Status != models.EventStatusActive {
			return ErrEventNotActive
		}
		return r.endEvent(ctx, tx, now, "closed_by_organizer")
	})
}

// ExpireTurn force-completes the participant on the clock when their
// time budget has elapsed. It runs through the same critical section
// as claims, so a late claim from the expiring participant either
// lands before the expiry or fails with ErrNotYourTurn after it.
// Stale invocations (deadline moved, nobody active) are no-ops.
func (r *Room) ExpireTurn(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.RunInTx(ctx, func(tx Tx) error {
		now := r.clock.Now().UTC()
		ev, err := r.loadEvent(ctx, tx, now)
		if err != nil {
			return err
		}
		if ev.Status != models.EventStatusActive {
			return nil
		}
		if ev.TurnDeadline == nil || now.Before(*ev.TurnDeadline) {
			return nil
		}

		participants, err := tx.ListParticipants(ctx, r.eventID)
		if err != nil {
			return err
		}
		turns := ComputeTurns(participants)
		if turns.Current == nil || turns.Current.Status != models.ParticipantStatusActive {
			return tx.SetTurnDeadline(ctx, r.eventID, nil)
		}

		expired := turns.Current
		if err := tx.SetParticipantStatus(ctx, expired.ID, models.ParticipantStatusDone, nil, &now); err != nil {
			return err
		}

		payload := events.TurnExpiredPayload{
			AgentID:     expired.AgentID,
			DisplayName: expired.DisplayName,
			TurnNumber:  expired.TurnNumber,
			ExpiredAt:   now,
		}
		msg := fmt.Sprintf("%s ran out of time", expired.DisplayName)
		if err := r.notify(ctx, tx, models.NotificationTypeTurnExpired, expired.DisplayName, msg, now, payload); err != nil {
			return err
		}

		log.Info().
			Str("event_id", r.eventID.String()).
			Str("agent_id", expired.AgentID).
			Int("turn_number", expired.TurnNumber).
			Msg("turn expired")

		return r.advanceTurns(ctx, tx, ev, now)
	})
}

// Snapshot returns a consistent read of the event's full state for
// initial render. It does not contend with the room's write path.
func (r *Room) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := r.store.RunInTx(ctx, func(tx Tx) error {
		now := r.clock.Now().UTC()
		ev, err := r.loadEvent(ctx, tx, now)
		if err != nil {
			return err
		}
		snap.Event = ev

		if snap.Participants, err = tx.ListParticipants(ctx, r.eventID); err != nil {
			return err
		}
		if snap.Units, err = tx.ListUnits(ctx, r.eventID); err != nil {
			return err
		}
		if snap.Claims, err = tx.ListClaims(ctx, r.eventID); err != nil {
			return err
		}
		if snap.LastSeq, err = tx.LastSeq(ctx, r.eventID); err != nil {
			return err
		}

		turns := ComputeTurns(snap.Participants)
		snap.CurrentTurn = turns.Current
		snap.NextTurn = turns.Next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Activity returns the event's activity log entries after the given
// sequence number, in order. Pass 0 for the full log.
func (r *Room) Activity(ctx context.Context, afterSeq int64) ([]models.Notification, error) {
	var entries []models.Notification
	err := r.store.RunInTx(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.ListNotifications(ctx, r.eventID, afterSeq)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// loadEvent fetches and locks the event row, applying the time-driven
// transitions first: PENDING becomes ACTIVE at the scheduled start and
// ACTIVE becomes ENDED at the scheduled end.
func (r *Room) loadEvent(ctx context.Context, tx Tx, now time.Time) (*models.Event, error) {
	ev, err := tx.GetEventForUpdate(ctx, r.eventID)
	if err != nil {
		return nil, err
	}

	if ev.Status == models.EventStatusPending && !now.Before(ev.ScheduledStart) {
		if err := tx.UpdateEventStatus(ctx, r.eventID, models.EventStatusActive, now); err != nil {
			return nil, err
		}
		ev.Status = models.EventStatusActive
		ev.StartedAt = &now
		log.Info().Str("event_id", r.eventID.String()).Msg("event started")
	}

	if ev.Status == models.EventStatusActive && ev.ScheduledEnd != nil && !now.Before(*ev.ScheduledEnd) {
		if err := r.endEvent(ctx, tx, now, "schedule_elapsed"); err != nil {
			return nil, err
		}
		ev.Status = models.EventStatusEnded
		ev.EndedAt = &now
	}

	return ev, nil
}

// advanceTurns recomputes the turn order after a registry mutation.
// If the computed current participant is still REGISTERED it is
// activated and its deadline armed; if no turn remains and at least
// one participant exists, the event ends.
func (r *Room) advanceTurns(ctx context.Context, tx Tx, ev *models.Event, now time.Time) error {
	participants, err := tx.ListParticipants(ctx, r.eventID)
	if err != nil {
		return err
	}

	if len(participants) > 0 && Exhausted(participants) {
		return r.endEvent(ctx, tx, now, "all_turns_complete")
	}

	turns := ComputeTurns(participants)
	if turns.Current == nil || turns.Current.Status != models.ParticipantStatusRegistered {
		return nil
	}

	current := turns.Current
	if err := tx.SetParticipantStatus(ctx, current.ID, models.ParticipantStatusActive, &now, nil); err != nil {
		return err
	}

	var deadline *time.Time
	if ev.TurnTimeBudgetSec > 0 {
		d := now.Add(time.Duration(ev.TurnTimeBudgetSec) * time.Second)
		deadline = &d
	}
	if err := tx.SetTurnDeadline(ctx, r.eventID, deadline); err != nil {
		return err
	}

	payload := events.TurnStartedPayload{
		AgentID:     current.AgentID,
		DisplayName: current.DisplayName,
		TurnNumber:  current.TurnNumber,
		StartedAt:   now,
		TimeoutAt:   deadline,
	}
	msg := fmt.Sprintf("it is %s's turn", current.DisplayName)
	return r.notify(ctx, tx, models.NotificationTypeTurnStarted, current.DisplayName, msg, now, payload)
}

// endEvent marks the event ENDED, clears the turn deadline and appends
// the EventEnded notification.
func (r *Room) endEvent(ctx context.Context, tx Tx, now time.Time, reason string) error {
	if err := tx.UpdateEventStatus(ctx, r.eventID, models.EventStatusEnded, now); err != nil {
		return err
	}
	if err := tx.SetTurnDeadline(ctx, r.eventID, nil); err != nil {
		return err
	}

	claims, err := tx.ListClaims(ctx, r.eventID)
	if err != nil {
		return err
	}

	payload := events.EventEndedPayload{
		EventID:      r.eventID.String(),
		EndedAt:      now,
		Reason:       reason,
		ClaimedUnits: len(claims),
	}
	msg := fmt.Sprintf("the selection has ended (%d units claimed)", len(claims))
	if err := r.notify(ctx, tx, models.NotificationTypeEventEnded, "", msg, now, payload); err != nil {
		return err
	}

	log.Info().
		Str("event_id", r.eventID.String()).
		Str("reason", reason).
		Int("claimed_units", len(claims)).
		Msg("event ended")
	return nil
}

func (r *Room) notify(ctx context.Context, tx Tx, typ models.NotificationType, actor, msg string, at time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	n := &models.Notification{
		ID:        uuid.New(),
		EventID:   r.eventID,
		Type:      typ,
		ActorName: actor,
		Message:   msg,
		Timestamp: at,
		Data:      data,
	}
	return tx.AppendNotification(ctx, n)
}

// checkActionable rejects joins and claims against events that are not
// accepting actions: PENDING rooms are not active yet and ENDED rooms
// are terminal.
func checkActionable(ev *models.Event) error {
	switch ev.Status {
	case models.EventStatusActive:
		return nil
	case models.EventStatusEnded:
		return ErrEventClosed
	default:
		return ErrEventNotActive
	}
}
