package room

import (
	"testing"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

func p(agent string, turn int, status models.ParticipantStatus) models.Participant {
	return models.Participant{AgentID: agent, TurnNumber: turn, Status: status}
}

func TestComputeTurns(t *testing.T) {
	tests := []struct {
		name         string
		participants []models.Participant
		wantCurrent  string
		wantNext     string
	}{
		{
			name: "empty registry",
		},
		{
			name: "single registered participant",
			participants: []models.Participant{
				p("alice", 1, models.ParticipantStatusRegistered),
			},
			wantCurrent: "alice",
		},
		{
			name: "active participant wins over lower registered",
			participants: []models.Participant{
				p("alice", 1, models.ParticipantStatusDone),
				p("budi", 2, models.ParticipantStatusActive),
				p("citra", 3, models.ParticipantStatusRegistered),
			},
			wantCurrent: "budi",
			wantNext:    "citra",
		},
		{
			name: "cancelled skipped for both current and next",
			participants: []models.Participant{
				p("alice", 1, models.ParticipantStatusCancelled),
				p("budi", 2, models.ParticipantStatusRegistered),
				p("citra", 3, models.ParticipantStatusCancelled),
				p("dewi", 4, models.ParticipantStatusRegistered),
			},
			wantCurrent: "budi",
			wantNext:    "dewi",
		},
		{
			name: "all terminal",
			participants: []models.Participant{
				p("alice", 1, models.ParticipantStatusDone),
				p("budi", 2, models.ParticipantStatusCancelled),
			},
		},
		{
			name: "next skips done participants",
			participants: []models.Participant{
				p("alice", 1, models.ParticipantStatusActive),
				p("budi", 2, models.ParticipantStatusDone),
				p("citra", 3, models.ParticipantStatusRegistered),
			},
			wantCurrent: "alice",
			wantNext:    "citra",
		},
		{
			name: "order follows turn numbers not input order",
			participants: []models.Participant{
				p("citra", 3, models.ParticipantStatusRegistered),
				p("alice", 1, models.ParticipantStatusRegistered),
				p("budi", 2, models.ParticipantStatusRegistered),
			},
			wantCurrent: "alice",
			wantNext:    "budi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := ComputeTurns(tt.participants)

			gotCurrent := ""
			if turns.Current != nil {
				gotCurrent = turns.Current.AgentID
			}
			gotNext := ""
			if turns.Next != nil {
				gotNext = turns.Next.AgentID
			}

			if gotCurrent != tt.wantCurrent {
				t.Errorf("current = %q; want %q", gotCurrent, tt.wantCurrent)
			}
			if gotNext != tt.wantNext {
				t.Errorf("next = %q; want %q", gotNext, tt.wantNext)
			}
		})
	}
}

func TestExhausted(t *testing.T) {
	if !Exhausted(nil) {
		t.Error("empty registry should be exhausted")
	}
	if !Exhausted([]models.Participant{
		p("alice", 1, models.ParticipantStatusDone),
		p("budi", 2, models.ParticipantStatusCancelled),
	}) {
		t.Error("all-terminal registry should be exhausted")
	}
	if Exhausted([]models.Participant{
		p("alice", 1, models.ParticipantStatusDone),
		p("budi", 2, models.ParticipantStatusRegistered),
	}) {
		t.Error("registry with a registered participant is not exhausted")
	}
	if Exhausted([]models.Participant{
		p("alice", 1, models.ParticipantStatusActive),
	}) {
		t.Error("registry with an active participant is not exhausted")
	}
}
