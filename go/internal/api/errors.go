package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/griyaproperti/pemilu/go/internal/room"
)

// writeError maps domain errors onto HTTP statuses and stable error
// codes. Precondition violations are 409 Conflict; actions against an
// ended event are 410 Gone so clients can stop retrying.
func writeError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, room.ErrEventNotFound):
		status, code = http.StatusNotFound, "event_not_found"
	case errors.Is(err, room.ErrEventClosed):
		status, code = http.StatusGone, "event_closed"
	case errors.Is(err, room.ErrEventNotActive):
		status, code = http.StatusConflict, "event_not_active"
	case errors.Is(err, room.ErrAlreadyJoined):
		status, code = http.StatusConflict, "already_joined"
	case errors.Is(err, room.ErrNotYourTurn):
		status, code = http.StatusConflict, "not_your_turn"
	case errors.Is(err, room.ErrUnitAlreadyClaimed):
		status, code = http.StatusConflict, "unit_already_claimed"
	default:
		status, code = http.StatusInternalServerError, "internal"
		log.Error().Err(err).Msg("request failed")
	}

	writeJSON(w, status, ErrorResponse{Code: code, Message: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "bad_request", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
