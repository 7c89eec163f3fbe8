package gateway

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/rs/zerolog/log"
)

// Service is the battle gateway: it pushes engine updates to renderers over WebSocket and
// serves the JSON API
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	battleHandler     *BattleHandler
}

// Config holds configuration for the battle gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the battle gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new battle gateway service
func NewService(config Config, battles BattleStore) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, &commandRunner{battles: battles})

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager, battles),
		battleHandler:     NewBattleHandler(battles),
	}
}

// Start runs the broadcaster until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting battle gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("battle gateway service stopped")
}

// Attach streams every update of a battle to its renderers. It has the shape of a
// registry hook; the returned func detaches and disconnects the renderers.
func (s *Service) Attach(id uuid.UUID, e *engine.Engine) func() {
	unsubscribe := e.SubscribeAll(func(next, _ engine.State, changed []engine.Field) {
		event, err := newEvent(id, EventTypeStateChanged, StateChangedPayload{
			State:   NewStateView(id, next),
			Changed: changed,
		})
		if err != nil {
			log.Error().Err(err).Str("battle_id", id.String()).Msg("failed to build state event")
			return
		}
		s.connectionManager.BroadcastToBattle(id, event)
	})

	return func() {
		unsubscribe()
		event, err := newEvent(id, EventTypeBattleClosed, struct{}{})
		if err != nil {
			return
		}
		s.connectionManager.CloseBattle(id, event)
	}
}

// RegisterRoutes registers the WebSocket and API routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.battleHandler.RegisterRoutes(mux)
	log.Info().Msg("battle gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
