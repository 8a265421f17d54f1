package room

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/jonboulle/clockwork"
)

// Manager hands out the Room instance for an event. There is exactly
// one Room per event ID per process, so all in-process mutations for
// an event funnel through the same mutex. Requests for different
// events proceed fully in parallel.
type Manager struct {
	store Store
	clock clockwork.Clock

	mu    sync.Mutex
	rooms map[uuid.UUID]*Room
}

// NewManager creates a room manager backed by the given store.
func NewManager(store Store, clock clockwork.Clock) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		rooms: make(map[uuid.UUID]*Room),
	}
}

// Room returns the room for an event, creating it on first use.
func (m *Manager) Room(eventID uuid.UUID) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[eventID]; ok {
		return r
	}
	r := NewRoom(eventID, m.store, m.clock)
	m.rooms[eventID] = r
	return r
}

// Release drops the cached room for an ended event. Safe to call for
// unknown IDs.
func (m *Manager) Release(eventID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, eventID)
}

// Join registers an agent in the event's room.
func (m *Manager) Join(ctx context.Context, eventID uuid.UUID, agentID, displayName string) (*models.Participant, error) {
	return m.Room(eventID).Join(ctx, agentID, displayName)
}

// SubmitClaim arbitrates a claim in the event's room.
func (m *Manager) SubmitClaim(ctx context.Context, eventID uuid.UUID, req ClaimRequest) (*models.Claim, error) {
	return m.Room(eventID).SubmitClaim(ctx, req)
}

// Cancel withdraws an agent from the event's room.
func (m *Manager) Cancel(ctx context.Context, eventID uuid.UUID, agentID string) error {
	return m.Room(eventID).Cancel(ctx, agentID)
}

// Close ends an event on organizer request.
func (m *Manager) Close(ctx context.Context, eventID uuid.UUID) error {
	return m.Room(eventID).Close(ctx)
}

// ExpireTurn force-completes an elapsed turn in the event's room.
func (m *Manager) ExpireTurn(ctx context.Context, eventID uuid.UUID) error {
	return m.Room(eventID).ExpireTurn(ctx)
}

// Snapshot reads an event's full state.
func (m *Manager) Snapshot(ctx context.Context, eventID uuid.UUID) (*models.Snapshot, error) {
	return m.Room(eventID).Snapshot(ctx)
}

// Activity reads an event's activity log after the given sequence.
func (m *Manager) Activity(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error) {
	return m.Room(eventID).Activity(ctx, afterSeq)
}
