package room

import (
	"sort"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

// Turns is the derived turn order for an event. It is a pure function
// of the participant set and is recomputed after every registry
// mutation; it carries no state of its own.
type Turns struct {
	// Current is the participant on the clock: the lowest-numbered
	// ACTIVE participant, or, if nobody is ACTIVE yet, the
	// lowest-numbered REGISTERED participant (the next to activate).
	Current *models.Participant

	// Next is the first participant after Current whose turn is still
	// ahead of them (not DONE). Cancelled participants are skipped but
	// keep their turn numbers.
	Next *models.Participant
}

// ComputeTurns derives current/next turn from a participant set.
// The input slice is not modified.
func ComputeTurns(participants []models.Participant) Turns {
	ordered := make([]models.Participant, 0, len(participants))
	for _, p := range participants {
		if p.Status == models.ParticipantStatusCancelled {
			continue
		}
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].TurnNumber < ordered[j].TurnNumber
	})

	var turns Turns
	for i := range ordered {
		if ordered[i].Status == models.ParticipantStatusActive {
			turns.Current = &ordered[i]
			break
		}
	}
	if turns.Current == nil {
		for i := range ordered {
			if ordered[i].Status == models.ParticipantStatusRegistered {
				turns.Current = &ordered[i]
				break
			}
		}
	}
	if turns.Current == nil {
		return turns
	}

	for i := range ordered {
		if ordered[i].TurnNumber <= turns.Current.TurnNumber {
			continue
		}
		if ordered[i].Status == models.ParticipantStatusDone {
			continue
		}
		turns.Next = &ordered[i]
		break
	}
	return turns
}

// Exhausted reports whether no turn remains: every participant is
// either DONE or CANCELLED (or nobody ever joined). Events with an
// exhausted turn order transition to ENDED.
func Exhausted(participants []models.Participant) bool {
	for _, p := range participants {
		switch p.Status {
		case models.ParticipantStatusRegistered, models.ParticipantStatusActive:
			return false
		}
	}
	return true
}
