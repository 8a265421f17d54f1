package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ListenerConfig configures the outbox relay.
type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // channel name to LISTEN on
	FallbackInterval time.Duration // how often to poll for missed rows
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // max rows to fetch per fallback batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "pemilu_notifications",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener relays committed notification rows to the message bus. A
// NOTIFY trigger on the notifications table wakes it immediately; the
// fallback ticker sweeps anything a dropped notification left behind.
type Listener struct {
	repo      *Repository
	listener  *pq.Listener
	publisher Publisher
	cfg       ListenerConfig
}

func NewListener(repo *Repository, publisher Publisher, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		repo:      repo,
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("outbox relay started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// Drain anything left unsent from a previous run before waiting
	// on notifications.
	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process unsent backlog")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case note := <-l.listener.Notify:
			if note == nil {
				// Connection re-established; poll for anything missed.
				if err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent after reconnect")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent rows")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// handleNotification handles a pg NOTIFY. Extra carries the new row's ID.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid notification ID in payload: %w", err)
	}

	n, err := l.repo.FetchByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch notification: %w", err)
	}
	if n == nil {
		// Row already relayed by the fallback sweep.
		return nil
	}

	if err := l.publishWithRetry(ctx, *n); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	if err := l.repo.MarkSent(ctx, id); err != nil {
		log.Error().Err(err).Str("notification_id", id.String()).Msg("failed to mark notification as sent")
		return err
	}

	log.Debug().Str("notification_id", id.String()).Msg("published and marked notification as sent")
	return nil
}

// processUnsent relays everything not yet published, oldest first.
func (l *Listener) processUnsent(ctx context.Context) error {
	unsent, err := l.repo.FetchUnsent(ctx, l.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unsent notifications: %w", err)
	}

	for _, n := range unsent {
		if err := l.publishWithRetry(ctx, n); err != nil {
			log.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to publish notification")
			continue
		}
		if err := l.repo.MarkSent(ctx, n.ID); err != nil {
			log.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to mark notification as sent")
			continue
		}
	}
	return nil
}

// publishWithRetry publishes with linear backoff up to MaxRetries.
func (l *Listener) publishWithRetry(ctx context.Context, n models.Notification) error {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if lastErr = l.publisher.Publish(ctx, n); lastErr == nil {
			return nil
		}
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Str("notification_id", n.ID.String()).
			Msg("publish attempt failed")
	}
	return fmt.Errorf("publish failed after %d retries: %w", l.cfg.MaxRetries, lastErr)
}
