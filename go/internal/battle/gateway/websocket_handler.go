package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/registry"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for battle renderers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	battles           EngineLookup
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, battles EngineLookup) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		battles:           battles,
	}
}

// HandleBattleConnection handles WebSocket connections for a specific battle. The first
// message on the socket is a Snapshot of the current view.
func (h *WebSocketHandler) HandleBattleConnection(w http.ResponseWriter, r *http.Request) {
	battleIDStr := r.URL.Query().Get("battle_id")
	if battleIDStr == "" {
		http.Error(w, "battle_id is required", http.StatusBadRequest)
		return
	}

	battleID, err := uuid.Parse(battleIDStr)
	if err != nil {
		http.Error(w, "invalid battle_id format", http.StatusBadRequest)
		return
	}

	e, err := h.battles.Get(battleID)
	if err != nil {
		if errors.Is(err, registry.ErrBattleNotFound) {
			http.Error(w, "battle not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to look up battle", http.StatusInternalServerError)
		return
	}

	// In production, this would come from a session
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous"
	}

	greeting, err := newEvent(battleID, EventTypeSnapshot, NewStateView(battleID, e.Snapshot()))
	if err != nil {
		http.Error(w, "failed to render state", http.StatusInternalServerError)
		return
	}

	// The upgrader has already written an error response on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, userID, battleID, greeting); err != nil {
		log.Error().
			Err(err).
			Str("battle_id", battleID.String()).
			Str("user_id", userID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/battle", h.HandleBattleConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
