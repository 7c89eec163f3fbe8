package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/rs/zerolog/log"
)

// SessionRecord is one finished session as stored.
type SessionRecord struct {
	SessionID     uuid.UUID              `json:"session_id"`
	BattleID      uuid.UUID              `json:"battle_id"`
	Winner        engine.Winner          `json:"winner"`
	PlayerScore   int                    `json:"player_score"`
	OpponentScore int                    `json:"opponent_score"`
	TotalRounds   int                    `json:"total_rounds"`
	Opponent      engine.OpponentProfile `json:"opponent"`
	Rounds        []engine.RoundResult   `json:"rounds,omitempty"`
	EndedAt       time.Time              `json:"ended_at"`
}

// NewSessionRecord captures an ended state.
func NewSessionRecord(battleID uuid.UUID, s engine.State, endedAt time.Time) SessionRecord {
	return SessionRecord{
		SessionID:     s.SessionID,
		BattleID:      battleID,
		Winner:        s.Winner,
		PlayerScore:   s.PlayerScore,
		OpponentScore: s.OpponentScore,
		TotalRounds:   s.TotalRounds,
		Opponent:      s.Opponent,
		Rounds:        append([]engine.RoundResult(nil), s.History...),
		EndedAt:       endedAt.UTC(),
	}
}

// Store persists finished sessions.
type Store interface {
	Save(ctx context.Context, rec SessionRecord) error
}

// Recorder saves every session that reaches the ended phase. Saves run off the engine's
// notification path.
type Recorder struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(store Store, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{store: store, timeout: timeout, now: time.Now}
}

// Attach has the shape of a registry hook.
func (r *Recorder) Attach(id uuid.UUID, e *engine.Engine) func() {
	return e.SubscribeAll(func(next, prev engine.State, _ []engine.Field) {
		if next.Phase != engine.PhaseEnded || prev.Phase == engine.PhaseEnded {
			return
		}
		rec := NewSessionRecord(id, next, r.now())

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()

			if err := r.store.Save(ctx, rec); err != nil {
				log.Error().
					Err(err).
					Str("battle_id", id.String()).
					Str("session_id", rec.SessionID.String()).
					Msg("failed to record session")
				return
			}
			log.Info().
				Str("battle_id", id.String()).
				Str("session_id", rec.SessionID.String()).
				Str("winner", string(rec.Winner)).
				Int("player_score", rec.PlayerScore).
				Int("opponent_score", rec.OpponentScore).
				Msg("session recorded")
		}()
	})
}

// Wait blocks until in-flight saves finish.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
