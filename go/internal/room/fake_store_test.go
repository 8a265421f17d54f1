package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

// fakeStore is an in-memory Store for engine tests. RunInTx snapshots
// the state up front and restores it when fn fails, matching the
// all-or-nothing contract of the real transaction.
type fakeStore struct {
	mu sync.Mutex
	st fakeState
}

type fakeState struct {
	events        map[uuid.UUID]*models.Event
	units         map[uuid.UUID]*models.Unit
	participants  map[uuid.UUID]*models.Participant
	claims        map[uuid.UUID]*models.Claim
	notifications []models.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		st: fakeState{
			events:       make(map[uuid.UUID]*models.Event),
			units:        make(map[uuid.UUID]*models.Unit),
			participants: make(map[uuid.UUID]*models.Participant),
			claims:       make(map[uuid.UUID]*models.Claim),
		},
	}
}

func (s *fakeStore) addEvent(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events[ev.ID] = &ev
}

func (s *fakeStore) addUnit(u models.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.units[u.ID] = &u
}

func (s *fakeStore) event(id uuid.UUID) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.st.events[id]
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.st.clone()
	if err := fn(&fakeTx{st: &s.st}); err != nil {
		s.st = saved
		return err
	}
	return nil
}

func (st fakeState) clone() fakeState {
	out := fakeState{
		events:        make(map[uuid.UUID]*models.Event, len(st.events)),
		units:         make(map[uuid.UUID]*models.Unit, len(st.units)),
		participants:  make(map[uuid.UUID]*models.Participant, len(st.participants)),
		claims:        make(map[uuid.UUID]*models.Claim, len(st.claims)),
		notifications: append([]models.Notification(nil), st.notifications...),
	}
	for id, ev := range st.events {
		cp := *ev
		out.events[id] = &cp
	}
	for id, u := range st.units {
		cp := *u
		out.units[id] = &cp
	}
	for id, p := range st.participants {
		cp := *p
		out.participants[id] = &cp
	}
	for id, c := range st.claims {
		cp := *c
		out.claims[id] = &cp
	}
	return out
}

type fakeTx struct {
	st *fakeState
}

var _ Tx = (*fakeTx)(nil)

func (t *fakeTx) GetEventForUpdate(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	ev, ok := t.st.events[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (t *fakeTx) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, at time.Time) error {
	ev, ok := t.st.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	ev.Status = status
	switch status {
	case models.EventStatusActive:
		ev.StartedAt = &at
	case models.EventStatusEnded:
		ev.EndedAt = &at
	}
	ev.UpdatedAt = at
	return nil
}

func (t *fakeTx) SetTurnDeadline(ctx context.Context, eventID uuid.UUID, deadline *time.Time) error {
	ev, ok := t.st.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	ev.TurnDeadline = deadline
	return nil
}

func (t *fakeTx) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range t.st.participants {
		if p.EventID == eventID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TurnNumber < out[j].TurnNumber })
	return out, nil
}

func (t *fakeTx) GetParticipant(ctx context.Context, eventID uuid.UUID, agentID string) (*models.Participant, error) {
	for _, p := range t.st.participants {
		if p.EventID == eventID && p.AgentID == agentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) CreateParticipant(ctx context.Context, eventID uuid.UUID, agentID, displayName string, registeredAt time.Time) (*models.Participant, error) {
	next := 1
	for _, p := range t.st.participants {
		if p.EventID == eventID && p.TurnNumber >= next {
			next = p.TurnNumber + 1
		}
	}
	p := &models.Participant{
		ID:           uuid.New(),
		EventID:      eventID,
		AgentID:      agentID,
		DisplayName:  displayName,
		TurnNumber:   next,
		Status:       models.ParticipantStatusRegistered,
		RegisteredAt: registeredAt,
	}
	t.st.participants[p.ID] = p
	cp := *p
	return &cp, nil
}

func (t *fakeTx) SetParticipantStatus(ctx context.Context, participantID uuid.UUID, status models.ParticipantStatus, turnStartedAt, turnEndedAt *time.Time) error {
	p, ok := t.st.participants[participantID]
	if !ok {
		return fmt.Errorf("unknown participant %s", participantID)
	}
	p.Status = status
	if turnStartedAt != nil {
		p.TurnStartedAt = turnStartedAt
	}
	if turnEndedAt != nil {
		p.TurnEndedAt = turnEndedAt
	}
	return nil
}

func (t *fakeTx) ListUnits(ctx context.Context, eventID uuid.UUID) ([]models.Unit, error) {
	var out []models.Unit
	for _, u := range t.st.units {
		if u.EventID == eventID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (t *fakeTx) ClaimUnit(ctx context.Context, eventID, unitID uuid.UUID, agentID string, at time.Time) (*models.Unit, error) {
	u, ok := t.st.units[unitID]
	if !ok || u.EventID != eventID || u.Status != models.UnitStatusAvailable {
		return nil, nil
	}
	u.Status = models.UnitStatusClaimed
	u.ClaimedBy = &agentID
	u.ClaimedAt = &at
	cp := *u
	return &cp, nil
}

func (t *fakeTx) CreateClaim(ctx context.Context, claim *models.Claim) error {
	cp := *claim
	t.st.claims[claim.ID] = &cp
	return nil
}

func (t *fakeTx) GetClaimByIdempotencyKey(ctx context.Context, eventID uuid.UUID, key string) (*models.Claim, error) {
	if key == "" {
		return nil, nil
	}
	for _, c := range t.st.claims {
		if c.EventID == eventID && c.IdempotencyKey == key {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) ListClaims(ctx context.Context, eventID uuid.UUID) ([]models.Claim, error) {
	var out []models.Claim
	for _, c := range t.st.claims {
		if c.EventID == eventID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	return out, nil
}

func (t *fakeTx) AppendNotification(ctx context.Context, n *models.Notification) error {
	var last int64
	for _, existing := range t.st.notifications {
		if existing.EventID == n.EventID && existing.Seq > last {
			last = existing.Seq
		}
	}
	n.Seq = last + 1
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	t.st.notifications = append(t.st.notifications, *n)
	return nil
}

func (t *fakeTx) LastSeq(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var last int64
	for _, n := range t.st.notifications {
		if n.EventID == eventID && n.Seq > last {
			last = n.Seq
		}
	}
	return last, nil
}

func (t *fakeTx) ListNotifications(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range t.st.notifications {
		if n.EventID == eventID && n.Seq > afterSeq {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}
