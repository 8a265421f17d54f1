package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/griyaproperti/pemilu/go/internal/event"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// DeadlineStore is what the orchestrator needs from event storage:
// the soonest armed turn deadline, plus the batches of events whose
// deadline or scheduled start has passed.
type DeadlineStore interface {
	FetchNextDeadline(ctx context.Context) (*event.NextDeadline, error)
	FetchEventsDueForExpiry(ctx context.Context, limit int32) ([]uuid.UUID, error)
	FetchEventsDueToStart(ctx context.Context, limit int32) ([]uuid.UUID, error)
}

// RoomService is the slice of the room manager the orchestrator drives.
// ExpireTurn also applies the time-driven status transitions, so it
// doubles as the tick that starts scheduled events.
type RoomService interface {
	ExpireTurn(ctx context.Context, eventID uuid.UUID) error
}

// Orchestrator watches turn deadlines and scheduled starts across all
// events and fires the corresponding room transitions. It is stateless
// between iterations: deadlines live in the database, so any instance
// can pick up after a crash.
type Orchestrator struct {
	store      DeadlineStore
	rooms      RoomService
	batchSize  int32
	clock      Clock
	wakeCh     chan struct{}
	instanceID string // unique ID for this scheduler instance

	// Worker pool configuration
	numWorkers int
	workCh     chan uuid.UUID

	// Track in-flight work to prevent duplicate processing
	inFlight   map[uuid.UUID]bool
	inFlightMu sync.Mutex
}

// NewOrchestrator creates a new orchestrator with a worker pool.
func NewOrchestrator(store DeadlineStore, rooms RoomService, batchSize int32) *Orchestrator {
	numWorkers := 10
	return &Orchestrator{
		store:      store,
		rooms:      rooms,
		batchSize:  batchSize,
		clock:      clockwork.NewRealClock(),
		wakeCh:     make(chan struct{}, 1),
		instanceID: uuid.New().String()[:8], // short ID for logging

		numWorkers: numWorkers,
		workCh:     make(chan uuid.UUID, numWorkers*2), // Buffer to prevent blocking
		inFlight:   make(map[uuid.UUID]bool),
	}
}

// WithClock swaps the clock, for tests.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	o.clock = clock
	return o
}

// Wake nudges the scheduler to re-read the next deadline. Called when a
// new deadline may be sooner than the one currently slept on.
func (o *Orchestrator) Wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

// RunScheduler loops forever, sleeping until the next deadline and firing timeouts.
func (o *Orchestrator) RunScheduler(ctx context.Context) error {
	log.Info().Str("instance", o.instanceID).Int("workers", o.numWorkers).Msg("scheduler started")

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(workerCtx, &wg, i)
	}

	defer func() {
		log.Info().Str("instance", o.instanceID).Msg("shutting down workers")
		cancelWorkers()
		close(o.workCh)
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	}()

	timer := o.clock.NewTimer(0)
	defer timer.Stop()

	const idlePollDuration = 5 * time.Second
	retryCount := 0
	const maxRetries = 3

	for {
		select {
		case <-o.wakeCh:
			log.Debug().Str("instance", o.instanceID).Msg("drained wake channel")
		default:
		}

		// Scheduled starts are poll-driven; the deadline timer below
		// covers turn expiry with sub-second accuracy.
		if err := o.dispatchDueStarts(ctx); err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("error dispatching due starts")
		}

		nd, err := o.store.FetchNextDeadline(ctx)
		if err != nil {
			retryCount++
			if retryCount <= maxRetries {
				log.Error().
					Err(err).
					Int("retry", retryCount).
					Str("instance", o.instanceID).
					Msg("error fetching next deadline, retrying")
				timer.Reset(time.Second * time.Duration(retryCount))
				select {
				case <-timer.Chan():
					continue
				case <-ctx.Done():
					return nil
				}
			}
			log.Error().Err(err).Str("instance", o.instanceID).Msg("error fetching next deadline after retries")
			return err
		}
		retryCount = 0

		if nd == nil || nd.Deadline == nil {
			log.Debug().Str("instance", o.instanceID).Msg("no armed deadlines; polling again in 5s")
			timer.Reset(idlePollDuration)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				log.Info().Str("instance", o.instanceID).Msg("shutdown during idle")
				return nil
			case <-o.wakeCh:
				log.Debug().Str("instance", o.instanceID).Msg("woken up from idle")
				continue
			}
		}

		wait := nd.Deadline.Sub(o.clock.Now())
		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.Chan():
				log.Info().Str("instance", o.instanceID).Msg("timer fired, fetching due events")
			case <-ctx.Done():
				log.Info().Str("instance", o.instanceID).Msg("shutdown during wait")
				return nil
			case <-o.wakeCh:
				log.Debug().Str("instance", o.instanceID).Msg("woken up early, new sooner deadline")
				continue
			}
		}

		due, err := o.store.FetchEventsDueForExpiry(ctx, o.batchSize)
		if err != nil {
			log.Error().Err(err).Str("instance", o.instanceID).Msg("error fetching due events")
			timer.Reset(time.Second)
			select {
			case <-timer.Chan():
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if len(due) > 0 {
			log.Info().
				Int("count_due", len(due)).
				Int32("batch_size", o.batchSize).
				Str("instance", o.instanceID).
				Msg("processing due events")
			if err := o.dispatch(ctx, due); err != nil {
				return nil
			}
		}
	}
}

// dispatchDueStarts queues events whose scheduled start has passed but
// are still PENDING, so their activation does not wait for traffic.
func (o *Orchestrator) dispatchDueStarts(ctx context.Context) error {
	due, err := o.store.FetchEventsDueToStart(ctx, o.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	log.Info().
		Int("count_due", len(due)).
		Str("instance", o.instanceID).
		Msg("activating scheduled events")
	return o.dispatch(ctx, due)
}

// dispatch hands event IDs to the worker pool, skipping ones already in
// flight. A non-nil error means the context was cancelled mid-queue.
func (o *Orchestrator) dispatch(ctx context.Context, eventIDs []uuid.UUID) error {
	for _, eventID := range eventIDs {
		o.inFlightMu.Lock()
		if o.inFlight[eventID] {
			log.Debug().Str("event_id", eventID.String()).Str("instance", o.instanceID).Msg("skipping event already in flight")
			o.inFlightMu.Unlock()
			continue
		}
		o.inFlight[eventID] = true
		o.inFlightMu.Unlock()

		select {
		case <-ctx.Done():
			o.inFlightMu.Lock()
			delete(o.inFlight, eventID)
			o.inFlightMu.Unlock()
			log.Info().Str("instance", o.instanceID).Msg("shutdown while queueing timeouts")
			return ctx.Err()
		case o.workCh <- eventID:
			log.Debug().Str("event_id", eventID.String()).Str("instance", o.instanceID).Msg("queued event for worker")
		}
	}
	return nil
}

// worker processes event timeouts from the work channel
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Info().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case eventID, ok := <-o.workCh:
			if !ok {
				log.Info().
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("work channel closed, worker shutting down")
				return
			}

			log.Info().
				Str("event_id", eventID.String()).
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker handling timeout")

			if err := o.rooms.ExpireTurn(ctx, eventID); err != nil {
				log.Error().
					Err(err).
					Str("event_id", eventID.String()).
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("worker timeout handling failed")
			}

			o.inFlightMu.Lock()
			delete(o.inFlight, eventID)
			o.inFlightMu.Unlock()
		}
	}
}
