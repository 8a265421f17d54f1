package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

// ActivitySource supplies the notification backlog used to replay
// messages a client missed between its snapshot and its subscription.
type ActivitySource interface {
	Activity(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error)
}

// WebSocketHandler handles WebSocket upgrade requests for event subscriptions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	activity          ActivitySource
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, activity ActivitySource) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		activity:          activity,
	}
}

// HandleEventConnection handles WebSocket connections for a specific
// selection event. Clients pass the last notification seq they have
// seen as after_seq; anything newer is replayed before live traffic.
func (h *WebSocketHandler) HandleEventConnection(w http.ResponseWriter, r *http.Request) {
	eventIDStr := r.URL.Query().Get("event_id")
	if eventIDStr == "" {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return
	}

	eventID, err := uuid.Parse(eventIDStr)
	if err != nil {
		http.Error(w, "invalid event_id format", http.StatusBadRequest)
		return
	}

	// In production the agent identity would come from a session or
	// JWT; observers may connect anonymously.
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		agentID = "observer"
	}

	var afterSeq int64 = -1
	if raw := r.URL.Query().Get("after_seq"); raw != "" {
		afterSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || afterSeq < 0 {
			http.Error(w, "invalid after_seq", http.StatusBadRequest)
			return
		}
	}

	// Fetch the backlog before upgrading so a storage failure still
	// gets a proper HTTP error.
	var backlog []models.Notification
	if afterSeq >= 0 {
		backlog, err = h.activity.Activity(r.Context(), eventID, afterSeq)
		if err != nil {
			log.Error().
				Err(err).
				Str("event_id", eventID.String()).
				Int64("after_seq", afterSeq).
				Msg("failed to load replay backlog")
			http.Error(w, "failed to load activity backlog", http.StatusInternalServerError)
			return
		}
	}

	conn, err := h.connectionManager.UpgradeConnection(w, r, agentID, eventID)
	if err != nil {
		log.Error().
			Err(err).
			Str("event_id", eventID.String()).
			Str("agent_id", agentID).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	for i := range backlog {
		conn.Enqueue(&backlog[i])
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, events := h.connectionManager.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"total_connections": total,
		"active_events":     events,
	})
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.HandleEventConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
