package room

import "errors"

// Engine errors. All of these are recoverable by the client: refresh
// the snapshot and retry or pick a different unit. Storage failures
// propagate as ordinary wrapped errors instead.
var (
	// ErrEventNotActive means the event has not started accepting actions.
	ErrEventNotActive = errors.New("event is not active")

	// ErrEventClosed means the event has ended; no further joins or claims.
	ErrEventClosed = errors.New("event is closed")

	// ErrAlreadyJoined means a participant already exists for this
	// (event, agent) pair. Cancelled participants cannot rejoin.
	ErrAlreadyJoined = errors.New("agent already joined this event")

	// ErrNotYourTurn means the agent has no participant row or its
	// participant is not currently on the clock.
	ErrNotYourTurn = errors.New("it is not this agent's turn")

	// ErrUnitAlreadyClaimed means the unit was granted to someone else,
	// does not belong to the event, or does not exist. Losers of a claim
	// race receive this error, never a generic failure.
	ErrUnitAlreadyClaimed = errors.New("unit is already claimed")

	// ErrEventNotFound means no event exists for the given ID.
	ErrEventNotFound = errors.New("event not found")
)
