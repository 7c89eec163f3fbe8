package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Reader is the read side of the repository.
type Reader interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*SessionRecord, error)
	ListByBattle(ctx context.Context, battleID uuid.UUID) ([]SessionRecord, error)
}

// Handler serves stored sessions over HTTP
type Handler struct {
	reader Reader
}

func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

// HandleGetSession handles GET /api/sessions/{id}
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session ID format")
		return
	}
	rec, err := h.reader.Get(r.Context(), id)
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to load session")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleListSessions handles GET /api/battles/{id}/sessions
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid battle ID format")
		return
	}
	recs, err := h.reader.ListByBattle(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("battle_id", id.String()).Msg("failed to list sessions")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recs == nil {
		recs = []SessionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("GET /api/battles/{id}/sessions", h.HandleListSessions)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
