package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/griyaproperti/pemilu/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ConnectionManager tracks the websocket connections watching each
// selection event and fans notifications out to them.
type ConnectionManager struct {
	eventConnections map[uuid.UUID]map[*Connection]bool
	mu               sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection is one client's websocket subscription to one event.
type Connection struct {
	ID      string
	AgentID string
	EventID uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	done     chan struct{}
	stopOnce sync.Once

	ConnectedAt time.Time
	LastPing    time.Time
}

// stop signals the pumps to exit. Send is never closed: a broadcast
// can race a disconnect, and a send to a stopped connection must land
// in the buffer (to be collected with it) rather than panic.
func (c *Connection) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// ConnectionConfig holds configuration for websocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is a notification queued for fan-out. AgentID, when
// set, restricts delivery to that agent's connections.
type BroadcastMessage struct {
	EventID      uuid.UUID
	Notification *models.Notification
	AgentID      string
}

// DefaultConnectionConfig returns default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a websocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		eventConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcast messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket and
// registers it with the event's pool. The returned connection can be
// used to queue a replay backlog before live traffic arrives.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, agentID string, eventID uuid.UUID) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade websocket connection")
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		AgentID:     agentID,
		EventID:     eventID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		done:        make(chan struct{}),
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("agent_id", agentID).
		Str("event_id", eventID.String()).
		Msg("websocket connection established")

	return connection, nil
}

// Enqueue puts a single notification on the connection's send queue.
// Used to replay missed notifications right after the upgrade.
func (c *Connection) Enqueue(n *models.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal replay notification")
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full during replay")
	}
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.eventConnections[conn.EventID] == nil {
		cm.eventConnections[conn.EventID] = make(map[*Connection]bool)
	}
	cm.eventConnections[conn.EventID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("event_id", conn.EventID.String()).
		Int("total_connections", len(cm.eventConnections[conn.EventID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.eventConnections[conn.EventID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			conn.stop()

			if len(connections) == 0 {
				delete(cm.eventConnections, conn.EventID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("agent_id", conn.AgentID).
				Str("event_id", conn.EventID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToEvent queues a notification for every connection watching
// the event.
func (cm *ConnectionManager) BroadcastToEvent(eventID uuid.UUID, n *models.Notification) {
	select {
	case cm.broadcastCh <- BroadcastMessage{EventID: eventID, Notification: n}:
	default:
		log.Warn().Str("event_id", eventID.String()).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastToAgent queues a notification for one agent's connections only.
func (cm *ConnectionManager) BroadcastToAgent(eventID uuid.UUID, agentID string, n *models.Notification) {
	select {
	case cm.broadcastCh <- BroadcastMessage{EventID: eventID, Notification: n, AgentID: agentID}:
	default:
		log.Warn().
			Str("event_id", eventID.String()).
			Str("agent_id", agentID).
			Msg("broadcast channel full, dropping agent message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.eventConnections[message.EventID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot the targets so the lock is not held while writing.
	var targets []*Connection
	for conn := range connections {
		if message.AgentID != "" && conn.AgentID != message.AgentID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	data, err := json.Marshal(message.Notification)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal notification for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- data:
		default:
			// Connection is slow or dead, close it.
			log.Warn().
				Str("connection_id", conn.ID).
				Str("agent_id", conn.AgentID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("type", string(message.Notification.Type)).
		Str("event_id", message.EventID.String()).
		Int64("seq", message.Notification.Seq).
		Int("connections", len(targets)).
		Msg("notification broadcasted")
}

// Stats reports active connection counts per event.
func (cm *ConnectionManager) Stats() (total int, events int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, connections := range cm.eventConnections {
		total += len(connections)
	}
	return total, len(cm.eventConnections)
}

// writePump sends outgoing messages and pings on one connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump consumes incoming frames; clients only send pongs and the
// occasional diagnostic message, which is logged and dropped.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			break
		}

		log.Debug().
			Str("connection_id", c.ID).
			Str("agent_id", c.AgentID).
			RawJSON("message", message).
			Msg("received client message")
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
