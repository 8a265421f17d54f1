package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/griyaproperti/pemilu/go/internal/dbconfig"
	"github.com/griyaproperti/pemilu/go/internal/event"
	"github.com/griyaproperti/pemilu/go/internal/orchestrator"
	"github.com/griyaproperti/pemilu/go/internal/room"
	"github.com/griyaproperti/pemilu/go/internal/room/pgstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("create connection pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	batchSize := int32(50)
	if raw := os.Getenv("ORCHESTRATOR_BATCH_SIZE"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			batchSize = int32(v)
		}
	}

	rooms := room.NewManager(pgstore.New(pool), clockwork.NewRealClock())
	events := event.NewRepository(pool)
	orch := orchestrator.NewOrchestrator(events, rooms, batchSize)

	// Stream consumer cuts the wake latency; the scheduler works
	// without it, it just polls.
	wakeCfg := orchestrator.DefaultWakeConsumerConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		wakeCfg.URL = url
	}
	if consumer, err := orchestrator.NewWakeConsumer(orch, wakeCfg); err != nil {
		log.Warn().Err(err).Msg("wake consumer unavailable, scheduler will poll")
	} else {
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("wake consumer failed")
			}
		}()
	}

	if err := orch.RunScheduler(ctx); err != nil {
		log.Fatal().Err(err).Msg("scheduler exited with error")
	}
	log.Info().Msg("orchestrator stopped")
}
