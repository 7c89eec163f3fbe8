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
	"github.com/rs/zerolog/log"
)

// ConnectionManager manages WebSocket connections for battle renderers
type ConnectionManager struct {
	// Connection pools organized by battle ID
	battleConnections map[uuid.UUID]map[*Connection]bool
	mu                sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage

	commands CommandHandler
}

// CommandHandler executes a client message for the battle a connection is attached to.
// A non-nil reply is sent back to that connection only.
type CommandHandler interface {
	HandleCommand(ctx context.Context, battleID uuid.UUID, msg ClientMessage) (reply *BattleEvent)
}

// Connection represents a WebSocket connection to a renderer
type Connection struct {
	ID       string
	UserID   string
	BattleID uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	Manager  *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	CommandTimeout  time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to broadcast to connections
type BroadcastMessage struct {
	BattleID uuid.UUID
	Event    *BattleEvent
	// Close drops every connection of the battle after the event is queued.
	Close bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		CommandTimeout:  30 * time.Second,
		MaxMessageSize:  1024, // 1KB max message size
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, commands CommandHandler) *ConnectionManager {
	return &ConnectionManager{
		battleConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for the countdown pulse
		commands:    commands,
	}
}

// Start begins processing broadcast messages
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

// UpgradeConnection upgrades an HTTP connection to WebSocket and queues the greeting
// event before any broadcast can reach the connection.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID string, battleID uuid.UUID, greeting *BattleEvent) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		BattleID:    battleID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	if greeting != nil {
		if data, err := json.Marshal(greeting); err == nil {
			connection.Send <- data
		}
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Str("battle_id", battleID.String()).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.battleConnections[conn.BattleID] == nil {
		cm.battleConnections[conn.BattleID] = make(map[*Connection]bool)
	}
	cm.battleConnections[conn.BattleID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("battle_id", conn.BattleID.String()).
		Int("total_connections", len(cm.battleConnections[conn.BattleID])).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if connections, exists := cm.battleConnections[conn.BattleID]; exists {
		if _, exists := connections[conn]; exists {
			delete(connections, conn)
			close(conn.Send)

			if len(connections) == 0 {
				delete(cm.battleConnections, conn.BattleID)
			}

			log.Info().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID).
				Str("battle_id", conn.BattleID.String()).
				Msg("connection unregistered")
		}
	}
}

// BroadcastToBattle sends an event to all connections of a battle
func (cm *ConnectionManager) BroadcastToBattle(battleID uuid.UUID, event *BattleEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{BattleID: battleID, Event: event}:
	default:
		log.Warn().Str("battle_id", battleID.String()).Msg("broadcast channel full, dropping message")
	}
}

// CloseBattle sends a final event and disconnects every renderer of the battle.
func (cm *ConnectionManager) CloseBattle(battleID uuid.UUID, event *BattleEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{BattleID: battleID, Event: event, Close: true}:
	default:
		log.Warn().Str("battle_id", battleID.String()).Msg("broadcast channel full, dropping close")
	}
}

// handleBroadcast processes a broadcast message
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.battleConnections[message.BattleID]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Create a snapshot of connections to avoid holding lock during broadcast
	targetConnections := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targetConnections = append(targetConnections, conn)
	}
	cm.mu.RUnlock()

	var eventData []byte
	if message.Event != nil {
		var err error
		eventData, err = json.Marshal(message.Event)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal event for broadcast")
			return
		}
	}

	for _, conn := range targetConnections {
		if eventData != nil {
			cm.send(conn, eventData)
		}
		if message.Close {
			// Closing Send makes the write pump flush and send a close frame.
			cm.unregisterConnection(conn)
		}
	}

	if message.Event != nil {
		log.Debug().
			Str("event_type", string(message.Event.Type)).
			Str("battle_id", message.BattleID.String()).
			Int("connections", len(targetConnections)).
			Msg("event broadcasted")
	}
}

func (cm *ConnectionManager) send(conn *Connection, data []byte) {
	cm.mu.RLock()
	_, live := cm.battleConnections[conn.BattleID][conn]
	if live {
		select {
		case conn.Send <- data:
			cm.mu.RUnlock()
			return
		default:
		}
	}
	cm.mu.RUnlock()
	if !live {
		return
	}

	// Connection is slow/dead, close it
	log.Warn().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("connection send buffer full, closing connection")
	cm.unregisterConnection(conn)
	conn.Conn.Close()
}

// ConnectionStats summarises active connections
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	ActiveBattles     int            `json:"active_battles"`
	BattleConnections map[string]int `json:"battle_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveBattles:     len(cm.battleConnections),
		BattleConnections: make(map[string]int),
	}
	for battleID, connections := range cm.battleConnections {
		stats.TotalConnections += len(connections)
		stats.BattleConnections[battleID.String()] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
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
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes a client command and runs it against the battle
func (c *Connection) handleClientMessage(message []byte) {
	log.Debug().
		Str("connection_id", c.ID).
		Str("user_id", c.UserID).
		RawJSON("message", message).
		Msg("received client message")

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.reply(rejected(c.BattleID, "", "malformed message"))
		return
	}
	if c.Manager.commands == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Manager.config.CommandTimeout)
	defer cancel()
	c.reply(c.Manager.commands.HandleCommand(ctx, c.BattleID, msg))
}

func (c *Connection) reply(event *BattleEvent) {
	if event == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reply")
		return
	}
	c.Manager.send(c, data)
}

func rejected(battleID uuid.UUID, command, reason string) *BattleEvent {
	event, err := newEvent(battleID, EventTypeCommandRejected, CommandRejectedPayload{Command: command, Reason: reason})
	if err != nil {
		return nil
	}
	return event
}
