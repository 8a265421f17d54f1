package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

const (
	consumerName          = "pemilu-orchestrator"
	consumerMaxDeliver    = 5
	consumerAckWait       = 30 * time.Second
	consumerMaxAckPending = 100
	natsMaxReconnects     = -1
	natsReconnectWait     = 2 * time.Second
)

// WakeConsumerConfig holds configuration for the orchestrator's stream
// consumer.
type WakeConsumerConfig struct {
	URL           string
	StreamName    string
	SubjectFilter string
}

// DefaultWakeConsumerConfig returns default consumer configuration.
func DefaultWakeConsumerConfig() WakeConsumerConfig {
	return WakeConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "PEMILU_EVENTS",
		SubjectFilter: "pemilu.events.>",
	}
}

// WakeConsumer nudges the scheduler when a notification implies a new
// deadline may have been armed. The scheduler would find it on its next
// poll anyway; the consumer just removes the poll latency.
type WakeConsumer struct {
	orchestrator *Orchestrator
	nc           *nats.Conn
	js           jetstream.JetStream
	consumer     jetstream.Consumer
	config       WakeConsumerConfig
}

// NewWakeConsumer creates the stream consumer for the orchestrator.
func NewWakeConsumer(o *Orchestrator, config WakeConsumerConfig) (*WakeConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	wc := &WakeConsumer{
		orchestrator: o,
		nc:           nc,
		js:           js,
		config:       config,
	}

	if err := wc.ensureConsumer(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	return wc, nil
}

// ensureConsumer creates or gets the JetStream consumer
func (wc *WakeConsumer) ensureConsumer(ctx context.Context) error {
	stream, err := wc.js.Stream(ctx, wc.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		Description:   "Orchestrator deadline wake consumer",
		FilterSubject: wc.config.SubjectFilter,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    consumerMaxDeliver,
		AckWait:       consumerAckWait,
		MaxAckPending: consumerMaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	}

	consumer, err := stream.Consumer(ctx, consumerName)
	if err != nil {
		consumer, err = stream.CreateConsumer(ctx, consumerConfig)
		if err != nil {
			return fmt.Errorf("create consumer: %w", err)
		}
		log.Info().Msg("created JetStream consumer for orchestrator")
	} else {
		log.Info().Msg("using existing JetStream consumer for orchestrator")
	}

	wc.consumer = consumer
	return nil
}

// Start consumes notifications until the context is cancelled.
func (wc *WakeConsumer) Start(ctx context.Context) error {
	consumeCtx, err := wc.consumer.Consume(func(msg jetstream.Msg) {
		if err := wc.processEvent(msg); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process orchestrator event")
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return nil
}

// processEvent wakes the scheduler for notifications that arm or clear
// a deadline. Everything else is ignored.
func (wc *WakeConsumer) processEvent(msg jetstream.Msg) error {
	var notification models.Notification
	if err := json.Unmarshal(msg.Data(), &notification); err != nil {
		return fmt.Errorf("unmarshal notification: %w", err)
	}

	switch notification.Type {
	case models.NotificationTypeTurnStarted,
		models.NotificationTypeClaimMade,
		models.NotificationTypeTurnExpired,
		models.NotificationTypeEventEnded:
		log.Debug().
			Str("event_id", notification.EventID.String()).
			Str("type", string(notification.Type)).
			Msg("waking scheduler")
		wc.orchestrator.Wake()
	}
	return nil
}

// Close gracefully closes the consumer connection.
func (wc *WakeConsumer) Close() error {
	if wc.nc != nil {
		wc.nc.Close()
	}
	return nil
}
