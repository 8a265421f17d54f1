package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/griyaproperti/pemilu/go/internal/models"
)

type fakeActivity struct {
	notifications []models.Notification
}

func (f *fakeActivity) Activity(ctx context.Context, eventID uuid.UUID, afterSeq int64) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if n.EventID == eventID && n.Seq > afterSeq {
			out = append(out, n)
		}
	}
	return out, nil
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func readNotification(t *testing.T, conn *websocket.Conn) models.Notification {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("unmarshal notification: %v", err)
	}
	return n
}

func TestBroadcastReachesEventConnections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := NewConnectionManager(DefaultConnectionConfig())
	go cm.Start(ctx)

	handler := NewWebSocketHandler(cm, &fakeActivity{})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	eventID := uuid.New()
	otherEventID := uuid.New()

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/events?event_id="+eventID.String()+"&agent_id=alice"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	stranger, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/events?event_id="+otherEventID.String()+"&agent_id=budi"), nil)
	if err != nil {
		t.Fatalf("dial stranger: %v", err)
	}
	defer stranger.Close()

	// Registration is asynchronous with the dial returning.
	waitForConnections(t, cm, 2)

	cm.BroadcastToEvent(eventID, &models.Notification{
		ID:      uuid.New(),
		EventID: eventID,
		Seq:     1,
		Type:    models.NotificationTypeClaimMade,
		Message: "alice claimed Jl. Melati No. 1",
	})

	got := readNotification(t, conn)
	if got.Type != models.NotificationTypeClaimMade || got.Seq != 1 {
		t.Fatalf("notification = %+v", got)
	}

	// The other event's connection must stay silent.
	stranger.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := stranger.ReadMessage(); err == nil {
		t.Fatal("stranger received a notification for another event")
	}
}

func TestReplayBacklogBeforeLiveTraffic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cm := NewConnectionManager(DefaultConnectionConfig())
	go cm.Start(ctx)

	eventID := uuid.New()
	activity := &fakeActivity{
		notifications: []models.Notification{
			{ID: uuid.New(), EventID: eventID, Seq: 3, Type: models.NotificationTypeTurnStarted},
			{ID: uuid.New(), EventID: eventID, Seq: 4, Type: models.NotificationTypeClaimMade},
		},
	}

	handler := NewWebSocketHandler(cm, activity)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL(srv, "/ws/events?event_id="+eventID.String()+"&after_seq=2"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readNotification(t, conn)
	second := readNotification(t, conn)
	if first.Seq != 3 || second.Seq != 4 {
		t.Fatalf("replay seqs = %d, %d; want 3, 4", first.Seq, second.Seq)
	}
}

func TestInvalidSubscriptionParams(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	handler := NewWebSocketHandler(cm, &fakeActivity{})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{
		"/ws/events",
		"/ws/events?event_id=not-a-uuid",
		"/ws/events?event_id=" + uuid.NewString() + "&after_seq=nope",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("GET %s status = %d; want 400", path, resp.StatusCode)
		}
	}
}

// A disconnect racing a fan-out must never panic the broadcast loop:
// unregistration only signals the pumps, it does not close Send.
func TestBroadcastDuringDisconnectDoesNotPanic(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	eventID := uuid.New()
	n := &models.Notification{
		ID:      uuid.New(),
		EventID: eventID,
		Seq:     1,
		Type:    models.NotificationTypeClaimMade,
	}

	for i := 0; i < 100000; i++ {
		conn := &Connection{
			ID:      uuid.NewString(),
			AgentID: "agent",
			EventID: eventID,
			Send:    make(chan []byte, 8),
			Manager: cm,
			done:    make(chan struct{}),
		}
		cm.registerConnection(conn)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			cm.handleBroadcast(BroadcastMessage{EventID: eventID, Notification: n})
		}()
		go func() {
			defer wg.Done()
			cm.unregisterConnection(conn)
		}()
		wg.Wait()

		select {
		case <-conn.done:
		default:
			t.Fatal("unregistered connection was not signalled to stop")
		}
	}
}

func waitForConnections(t *testing.T, cm *ConnectionManager, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if total, _ := cm.Stats(); total >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	total, _ := cm.Stats()
	t.Fatalf("connections = %d; want %d", total, want)
}
