package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/griyaproperti/pemilu/go/internal/room"
)

type fakeRooms struct {
	joinErr   error
	claimErr  error
	cancelErr error
	closeErr  error

	lastClaim room.ClaimRequest

	snapshot      *models.Snapshot
	notifications []models.Notification
}

func (f *fakeRooms) Join(ctx context.Context, eventID uuid.UUID, agentID, displayName string) (*models.Participant, error) {
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return &models.Participant{
		ID: uuid.New(), EventID: eventID, AgentID: agentID,
		DisplayName: displayName, TurnNumber: 1,
		Status: models.ParticipantStatusActive,
	}, nil
}

func (f *fakeRooms) SubmitClaim(ctx context.Context, eventID uuid.UUID, req room.ClaimRequest) (*models.Claim, error) {
	f.lastClaim = req
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return &models.Claim{
		ID: uuid.New(), EventID: eventID, AgentID: req.AgentID,
		UnitID: req.UnitID, TurnNumber: 1, ClaimedAt: time.Now(),
	}, nil
}

func (f *fakeRooms) Cancel(ctx context.Context, eventID uuid.UUID, agentID string) error {
	return f.cancelErr
}

func (f *fakeRooms) Close(ctx context.Context, eventID uuid.UUID) error {
	return f.closeErr
}

func (f *fakeRooms) Snapshot(ctx context.Context, eventID uuid.UUID) (*models.Snapshot, error) {
	if f.snapshot == nil {
		return nil, room.ErrEventNotFound
	}
	return f.snapshot, nil
}

func (f *fakeRooms) Activity(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.Seq > afterSeq {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeRegistrar struct {
	err error
}

func (f *fakeRegistrar) Register(ctx context.Context, req CreateEventRequest) (*models.Event, []models.Unit, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	ev := &models.Event{
		ID: uuid.New(), Title: req.Title,
		Status:         models.EventStatusPending,
		ScheduledStart: req.ScheduledStart,
	}
	units := make([]models.Unit, len(req.Units))
	for i, in := range req.Units {
		units[i] = models.Unit{
			ID: uuid.New(), EventID: ev.ID,
			Address: in.Address, Price: in.Price,
			Status: models.UnitStatusAvailable,
		}
	}
	return ev, units, nil
}

func newTestServer(rooms *fakeRooms, registrar *fakeRegistrar) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(rooms, registrar).RegisterRoutes(mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestCreateEvent(t *testing.T) {
	srv := newTestServer(&fakeRooms{}, &fakeRegistrar{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/events", CreateEventRequest{
		Title:          "Blok A",
		ScheduledStart: time.Now().Add(time.Hour),
		Units: []UnitInput{
			{Address: "Jl. Melati No. 1", Price: 450_000_000},
			{Address: "Jl. Melati No. 2", Price: 460_000_000},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d; want 201", resp.StatusCode)
	}
	var out CreateEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Event.Title != "Blok A" || len(out.Units) != 2 {
		t.Fatalf("response = %+v", out)
	}
}

func TestCreateEventValidation(t *testing.T) {
	srv := newTestServer(&fakeRooms{}, &fakeRegistrar{})
	defer srv.Close()

	tests := []struct {
		name string
		req  CreateEventRequest
	}{
		{"missing title", CreateEventRequest{
			ScheduledStart: time.Now(),
			Units:          []UnitInput{{Address: "x"}},
		}},
		{"missing start", CreateEventRequest{
			Title: "t",
			Units: []UnitInput{{Address: "x"}},
		}},
		{"no units", CreateEventRequest{
			Title: "t", ScheduledStart: time.Now(),
		}},
		{"unit without address", CreateEventRequest{
			Title: "t", ScheduledStart: time.Now(),
			Units: []UnitInput{{Price: 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/events", tt.req)
			if e := decodeError(t, resp); resp.StatusCode != http.StatusBadRequest || e.Code != "bad_request" {
				t.Fatalf("status = %d, code = %q; want 400 bad_request", resp.StatusCode, e.Code)
			}
		})
	}
}

func TestJoinEndpoint(t *testing.T) {
	rooms := &fakeRooms{}
	srv := newTestServer(rooms, &fakeRegistrar{})
	defer srv.Close()

	eventID := uuid.New()
	resp := postJSON(t, srv.URL+"/api/events/"+eventID.String()+"/join", JoinRequest{
		AgentID: "alice", DisplayName: "Alice",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d; want 201", resp.StatusCode)
	}

	var p models.Participant
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.AgentID != "alice" || p.TurnNumber != 1 {
		t.Fatalf("participant = %+v", p)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"already joined", room.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
		{"not active", room.ErrEventNotActive, http.StatusConflict, "event_not_active"},
		{"closed", room.ErrEventClosed, http.StatusGone, "event_closed"},
		{"not found", room.ErrEventNotFound, http.StatusNotFound, "event_not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRooms{joinErr: tt.err}, &fakeRegistrar{})
			defer srv.Close()

			resp := postJSON(t, srv.URL+"/api/events/"+uuid.NewString()+"/join", JoinRequest{AgentID: "alice"})
			e := decodeError(t, resp)
			if resp.StatusCode != tt.wantStatus || e.Code != tt.wantCode {
				t.Fatalf("status = %d, code = %q; want %d %q", resp.StatusCode, e.Code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestClaimEndpoint(t *testing.T) {
	rooms := &fakeRooms{}
	srv := newTestServer(rooms, &fakeRegistrar{})
	defer srv.Close()

	unitID := uuid.New()
	resp := postJSON(t, srv.URL+"/api/events/"+uuid.NewString()+"/claims", SubmitClaimRequest{
		AgentID: "alice", UnitID: unitID.String(), IdempotencyKey: "k-1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d; want 201", resp.StatusCode)
	}
	if rooms.lastClaim.UnitID != unitID || rooms.lastClaim.IdempotencyKey != "k-1" {
		t.Fatalf("claim request = %+v", rooms.lastClaim)
	}
}

func TestClaimIdempotencyKeyHeader(t *testing.T) {
	rooms := &fakeRooms{}
	srv := newTestServer(rooms, &fakeRegistrar{})
	defer srv.Close()

	body, _ := json.Marshal(SubmitClaimRequest{AgentID: "alice", UnitID: uuid.NewString()})
	req, _ := http.NewRequest(http.MethodPost,
		srv.URL+"/api/events/"+uuid.NewString()+"/claims", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "header-key")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if rooms.lastClaim.IdempotencyKey != "header-key" {
		t.Fatalf("idempotency key = %q; want header-key", rooms.lastClaim.IdempotencyKey)
	}
}

func TestClaimConflict(t *testing.T) {
	srv := newTestServer(&fakeRooms{claimErr: room.ErrUnitAlreadyClaimed}, &fakeRegistrar{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/events/"+uuid.NewString()+"/claims", SubmitClaimRequest{
		AgentID: "alice", UnitID: uuid.NewString(),
	})
	e := decodeError(t, resp)
	if resp.StatusCode != http.StatusConflict || e.Code != "unit_already_claimed" {
		t.Fatalf("status = %d, code = %q; want 409 unit_already_claimed", resp.StatusCode, e.Code)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	eventID := uuid.New()
	rooms := &fakeRooms{
		snapshot: &models.Snapshot{
			Event:   &models.Event{ID: eventID, Status: models.EventStatusActive},
			LastSeq: 7,
		},
	}
	srv := newTestServer(rooms, &fakeRegistrar{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events/" + eventID.String() + "/snapshot")
	if err != nil {
		t.Fatalf("GET snapshot: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}

	var snap models.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.LastSeq != 7 || snap.Event.ID != eventID {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestActivityEndpoint(t *testing.T) {
	eventID := uuid.New()
	rooms := &fakeRooms{
		notifications: []models.Notification{
			{EventID: eventID, Seq: 1, Type: models.NotificationTypeParticipantJoined},
			{EventID: eventID, Seq: 2, Type: models.NotificationTypeTurnStarted},
			{EventID: eventID, Seq: 3, Type: models.NotificationTypeClaimMade},
		},
	}
	srv := newTestServer(rooms, &fakeRegistrar{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/events/" + eventID.String() + "/activity?after_seq=1")
	if err != nil {
		t.Fatalf("GET activity: %v", err)
	}
	defer resp.Body.Close()

	var out ActivityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Notifications) != 2 || out.LastSeq != 3 {
		t.Fatalf("activity = %+v", out)
	}

	resp, err = http.Get(srv.URL + "/api/events/" + eventID.String() + "/activity?after_seq=-1")
	if err != nil {
		t.Fatalf("GET activity: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative after_seq status = %d; want 400", resp.StatusCode)
	}
}

func TestCancelAndClose(t *testing.T) {
	srv := newTestServer(&fakeRooms{}, &fakeRegistrar{})
	defer srv.Close()

	eventID := uuid.NewString()

	resp := postJSON(t, srv.URL+"/api/events/"+eventID+"/cancel", CancelRequest{AgentID: "alice"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status = %d; want 204", resp.StatusCode)
	}

	resp, err := http.Post(srv.URL+"/api/events/"+eventID+"/close", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST close: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("close status = %d; want 204", resp.StatusCode)
	}
}

func TestInvalidEventID(t *testing.T) {
	srv := newTestServer(&fakeRooms{}, &fakeRegistrar{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/events/not-a-uuid/join", JoinRequest{AgentID: "alice"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", resp.StatusCode)
	}
}
