package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/registry"
	"github.com/rs/zerolog/log"
)

// BattleStore is what the HTTP API needs from the registry
type BattleStore interface {
	EngineLookup
	Create() (uuid.UUID, *engine.Engine, error)
	List() []registry.Summary
	Remove(id uuid.UUID) error
}

// CreateBattleRequest is the optional body of POST /api/battles
type CreateBattleRequest struct {
	Start    bool                   `json:"start"`
	Opponent *engine.OpponentConfig `json:"opponent,omitempty"`
}

// AnswerRequest is the body of POST /api/battles/{id}/answers
type AnswerRequest struct {
	Option *int `json:"option"`
}

// HistoryResponse is the body of GET /api/battles/{id}/history
type HistoryResponse struct {
	BattleID      string               `json:"battle_id"`
	SessionID     string               `json:"session_id,omitempty"`
	Phase         engine.Phase         `json:"phase"`
	PlayerScore   int                  `json:"player_score"`
	OpponentScore int                  `json:"opponent_score"`
	Winner        engine.Winner        `json:"winner,omitempty"`
	Rounds        []engine.RoundResult `json:"rounds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// BattleHandler handles the JSON HTTP API for battles
type BattleHandler struct {
	battles BattleStore
}

// NewBattleHandler creates a new battle handler
func NewBattleHandler(battles BattleStore) *BattleHandler {
	return &BattleHandler{battles: battles}
}

// HandleCreateBattle handles POST /api/battles
func (h *BattleHandler) HandleCreateBattle(w http.ResponseWriter, r *http.Request) {
	var req CreateBattleRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Opponent != nil {
		if err := req.Opponent.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, e, err := h.battles.Create()
	if err != nil {
		writeLookupError(w, uuid.Nil, err)
		return
	}
	if req.Opponent != nil {
		e.ConfigureOpponent(*req.Opponent)
	}
	if req.Start {
		if err := e.StartNewGame(r.Context()); err != nil {
			writeLookupError(w, id, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, NewStateView(id, e.Snapshot()))
}

// HandleListBattles handles GET /api/battles
func (h *BattleHandler) HandleListBattles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.battles.List())
}

// HandleGetState handles GET /api/battles/{id}/state
func (h *BattleHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	id, e, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(id, e.Snapshot()))
}

// HandleGetHistory handles GET /api/battles/{id}/history
func (h *BattleHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, e, ok := h.lookup(w, r)
	if !ok {
		return
	}
	s := e.Snapshot()
	resp := HistoryResponse{
		BattleID:      id.String(),
		Phase:         s.Phase,
		PlayerScore:   s.PlayerScore,
		OpponentScore: s.OpponentScore,
		Winner:        s.Winner,
		Rounds:        append([]engine.RoundResult{}, s.History...),
	}
	if s.SessionID != uuid.Nil {
		resp.SessionID = s.SessionID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSelectAnswer handles POST /api/battles/{id}/answers
func (h *BattleHandler) HandleSelectAnswer(w http.ResponseWriter, r *http.Request) {
	id, e, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Option == nil {
		writeError(w, http.StatusBadRequest, "option is required")
		return
	}
	if !e.SelectAnswer(engine.SidePlayer, *req.Option) {
		writeError(w, http.StatusConflict, "selection not accepted")
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(id, e.Snapshot()))
}

// HandleNewGame handles POST /api/battles/{id}/new-game
func (h *BattleHandler) HandleNewGame(w http.ResponseWriter, r *http.Request) {
	id, e, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := e.StartNewGame(r.Context()); err != nil {
		writeLookupError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStateView(id, e.Snapshot()))
}

// HandleConfigureOpponent handles PUT /api/battles/{id}/opponent
func (h *BattleHandler) HandleConfigureOpponent(w http.ResponseWriter, r *http.Request) {
	id, e, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var cfg engine.OpponentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.ConfigureOpponent(cfg)
	writeJSON(w, http.StatusOK, NewStateView(id, e.Snapshot()))
}

// HandleDeleteBattle handles DELETE /api/battles/{id}
func (h *BattleHandler) HandleDeleteBattle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid battle ID format")
		return
	}
	if err := h.battles.Remove(id); err != nil {
		writeLookupError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the battle API routes
func (h *BattleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/battles", h.HandleCreateBattle)
	mux.HandleFunc("GET /api/battles", h.HandleListBattles)
	mux.HandleFunc("GET /api/battles/{id}/state", h.HandleGetState)
	mux.HandleFunc("GET /api/battles/{id}/history", h.HandleGetHistory)
	mux.HandleFunc("POST /api/battles/{id}/answers", h.HandleSelectAnswer)
	mux.HandleFunc("POST /api/battles/{id}/new-game", h.HandleNewGame)
	mux.HandleFunc("PUT /api/battles/{id}/opponent", h.HandleConfigureOpponent)
	mux.HandleFunc("DELETE /api/battles/{id}", h.HandleDeleteBattle)
}

func (h *BattleHandler) lookup(w http.ResponseWriter, r *http.Request) (uuid.UUID, *engine.Engine, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid battle ID format")
		return uuid.Nil, nil, false
	}
	e, err := h.battles.Get(id)
	if err != nil {
		writeLookupError(w, id, err)
		return uuid.Nil, nil, false
	}
	return id, e, true
}

func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeLookupError(w http.ResponseWriter, id uuid.UUID, err error) {
	switch {
	case errors.Is(err, registry.ErrBattleNotFound):
		writeError(w, http.StatusNotFound, "battle not found")
	case errors.Is(err, registry.ErrTooManyBattles):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, registry.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	case errors.Is(err, engine.ErrClosed):
		writeError(w, http.StatusGone, "battle closed")
	default:
		log.Error().Err(err).Str("battle_id", id.String()).Msg("battle request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
