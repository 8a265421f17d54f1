package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/griyaproperti/pemilu/go/internal/event"
)

type fakeDeadlineStore struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	eventID  uuid.UUID
	deadline *time.Time
	asked    chan struct{}
}

func (s *fakeDeadlineStore) FetchNextDeadline(ctx context.Context) (*event.NextDeadline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.asked <- struct{}{}:
	default:
	}
	if s.deadline == nil {
		return nil, nil
	}
	return &event.NextDeadline{EventID: s.eventID, Deadline: s.deadline}, nil
}

func (s *fakeDeadlineStore) FetchEventsDueForExpiry(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline == nil || s.clock.Now().Before(*s.deadline) {
		return nil, nil
	}
	return []uuid.UUID{s.eventID}, nil
}

func (s *fakeDeadlineStore) FetchEventsDueToStart(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *fakeDeadlineStore) clearDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = nil
}

type fakeRoomService struct {
	store   *fakeDeadlineStore
	expired chan uuid.UUID
}

func (f *fakeRoomService) ExpireTurn(ctx context.Context, eventID uuid.UUID) error {
	// The real room clears the deadline inside its transaction.
	f.store.clearDeadline()
	f.expired <- eventID
	return nil
}

func TestSchedulerFiresExpiredDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	eventID := uuid.New()
	deadline := clock.Now().Add(30 * time.Second)

	store := &fakeDeadlineStore{
		clock:    clock,
		eventID:  eventID,
		deadline: &deadline,
		asked:    make(chan struct{}, 1),
	}
	rooms := &fakeRoomService{store: store, expired: make(chan uuid.UUID, 10)}

	orch := NewOrchestrator(store, rooms, 10).WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.RunScheduler(ctx)
	}()

	// Wait for the scheduler to pick up the deadline and go to sleep,
	// then jump past it.
	<-store.asked
	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	select {
	case got := <-rooms.expired:
		if got != eventID {
			t.Fatalf("expired event = %s; want %s", got, eventID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never fired the expired deadline")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not shut down")
	}
}

func TestSchedulerWakesFromIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	eventID := uuid.New()

	store := &fakeDeadlineStore{
		clock:   clock,
		eventID: eventID,
		asked:   make(chan struct{}, 1),
	}
	rooms := &fakeRoomService{store: store, expired: make(chan uuid.UUID, 10)}

	orch := NewOrchestrator(store, rooms, 10).WithClock(clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.RunScheduler(ctx)
	}()

	// No deadline: the scheduler parks on its idle timer.
	<-store.asked
	clock.BlockUntil(1)

	// Arm a deadline that is already due, then wake the scheduler.
	due := clock.Now().Add(-time.Second)
	store.mu.Lock()
	store.deadline = &due
	store.mu.Unlock()
	orch.Wake()

	select {
	case got := <-rooms.expired:
		if got != eventID {
			t.Fatalf("expired event = %s; want %s", got, eventID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("wake did not trigger processing")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not shut down")
	}
}
