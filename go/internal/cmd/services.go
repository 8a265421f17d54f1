package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/griyaproperti/pemilu/go/internal/api"
	"github.com/griyaproperti/pemilu/go/internal/room"
	"github.com/griyaproperti/pemilu/go/internal/room/pgstore"
)

// Services holds the wired application components. The orchestrator
// and the realtime gateway run as their own binaries.
type Services struct {
	Rooms *room.Manager
	API   *api.Handler
}

func setupServices(pool *pgxpool.Pool, config *Config) *Services {
	// Storage layer → room engine → HTTP layer.
	store := pgstore.New(pool)
	rooms := room.NewManager(store, clockwork.NewRealClock())

	registrar := api.NewRegistrar(pool)
	handler := api.NewHandler(rooms, registrar)

	return &Services{
		Rooms: rooms,
		API:   handler,
	}
}
