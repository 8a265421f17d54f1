package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/room"
)

// RoomService is the slice of the room manager the HTTP layer uses.
type RoomService interface {
	Join(ctx context.Context, eventID uuid.UUID, agentID, displayName string) (*models.Participant, error)
	SubmitClaim(ctx context.Context, eventID uuid.UUID, req room.ClaimRequest) (*models.Claim, error)
	Cancel(ctx context.Context, eventID uuid.UUID, agentID string) error
	Close(ctx context.Context, eventID uuid.UUID) error
	Snapshot(ctx context.Context, eventID uuid.UUID) (*models.Snapshot, error)
	Activity(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error)
}

// EventRegistrar creates events and their unit pools.
type EventRegistrar interface {
	Register(ctx context.Context, req CreateEventRequest) (*models.Event, []models.Unit, error)
}

// Handler serves the selection event HTTP API.
type Handler struct {
	rooms     RoomService
	registrar EventRegistrar
}

// NewHandler creates the HTTP handler.
func NewHandler(rooms RoomService, registrar EventRegistrar) *Handler {
	return &Handler{rooms: rooms, registrar: registrar}
}

// RegisterRoutes registers all API routes on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events", h.handleCreateEvent)
	mux.HandleFunc("GET /api/events/{id}/snapshot", h.handleSnapshot)
	mux.HandleFunc("GET /api/events/{id}/activity", h.handleActivity)
	mux.HandleFunc("POST /api/events/{id}/join", h.handleJoin)
	mux.HandleFunc("POST /api/events/{id}/claims", h.handleSubmitClaim)
	mux.HandleFunc("POST /api/events/{id}/cancel", h.handleCancel)
	mux.HandleFunc("POST /api/events/{id}/close", h.handleClose)
	log.Info().Msg("api routes registered")
}

func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}
	if req.ScheduledStart.IsZero() {
		writeBadRequest(w, "scheduled_start is required")
		return
	}
	if req.ScheduledEnd != nil && !req.ScheduledEnd.After(req.ScheduledStart) {
		writeBadRequest(w, "scheduled_end must be after scheduled_start")
		return
	}
	if req.TurnTimeBudgetSec < 0 {
		writeBadRequest(w, "turn_time_budget_sec must not be negative")
		return
	}
	if len(req.Units) == 0 {
		writeBadRequest(w, "at least one unit is required")
		return
	}
	for _, u := range req.Units {
		if u.Address == "" {
			writeBadRequest(w, "every unit needs an address")
			return
		}
	}

	ev, units, err := h.registrar.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info().
		Str("event_id", ev.ID.String()).
		Str("title", ev.Title).
		Int("units", len(units)).
		Msg("event created")
	writeJSON(w, http.StatusCreated, CreateEventResponse{Event: ev, Units: units})
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	snap, err := h.rooms.Snapshot(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var afterSeq int64
	if raw := r.URL.Query().Get("after_seq"); raw != "" {
		var err error
		afterSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || afterSeq < 0 {
			writeBadRequest(w, "invalid after_seq")
			return
		}
	}

	notifications, err := h.rooms.Activity(r.Context(), eventID, afterSeq)
	if err != nil {
		writeError(w, err)
		return
	}

	lastSeq := afterSeq
	if len(notifications) > 0 {
		lastSeq = notifications[len(notifications)-1].Seq
	}
	writeJSON(w, http.StatusOK, ActivityResponse{Notifications: notifications, LastSeq: lastSeq})
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		writeBadRequest(w, "agent_id is required")
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.AgentID
	}

	participant, err := h.rooms.Join(r.Context(), eventID, req.AgentID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participant)
}

func (h *Handler) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req SubmitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		writeBadRequest(w, "agent_id is required")
		return
	}
	unitID, err := uuid.Parse(req.UnitID)
	if err != nil {
		writeBadRequest(w, "invalid unit_id")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	claim, err := h.rooms.SubmitClaim(r.Context(), eventID, room.ClaimRequest{
		AgentID:        req.AgentID,
		UnitID:         unitID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		writeBadRequest(w, "agent_id is required")
		return
	}

	if err := h.rooms.Cancel(r.Context(), eventID, req.AgentID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	eventID, ok := h.eventID(w, r)
	if !ok {
		return
	}

	if err := h.rooms.Close(r.Context(), eventID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeBadRequest(w, "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}
