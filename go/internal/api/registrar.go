package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/griyaproperti/pemilu/go/internal/event"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/sqlutil"
	"github.com/griyaproperti/pemilu/go/internal/unit"
)

// Registrar creates an event and its unit pool in one transaction, so
// a half-created pool is never observable.
type Registrar struct {
	pool *pgxpool.Pool
}

// NewRegistrar creates an event registrar backed by the pool.
func NewRegistrar(pool *pgxpool.Pool) *Registrar {
	return &Registrar{pool: pool}
}

var _ EventRegistrar = (*Registrar)(nil)

func (r *Registrar) Register(ctx context.Context, req CreateEventRequest) (*models.Event, []models.Unit, error) {
	var ev *models.Event
	var units []models.Unit

	err := sqlutil.Run(ctx, r.pool, func(tx pgx.Tx) error {
		events := event.NewRepository(tx)
		unitRepo := unit.NewRepository(tx)

		var err error
		ev, err = events.CreateEvent(ctx, event.CreateEventRequest{
			ID:                uuid.New(),
			Title:             req.Title,
			ScheduledStart:    req.ScheduledStart,
			ScheduledEnd:      req.ScheduledEnd,
			TurnTimeBudgetSec: req.TurnTimeBudgetSec,
		})
		if err != nil {
			return err
		}

		units = make([]models.Unit, 0, len(req.Units))
		for _, in := range req.Units {
			u, err := unitRepo.CreateUnit(ctx, unit.CreateUnitRequest{
				ID:          uuid.New(),
				EventID:     ev.ID,
				PropertyRef: in.PropertyRef,
				Address:     in.Address,
				Price:       in.Price,
				ImageURL:    in.ImageURL,
			})
			if err != nil {
				return err
			}
			units = append(units, *u)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return ev, units, nil
}
