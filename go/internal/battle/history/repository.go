package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/history/db"
	"github.com/mcdev12/quizbattle/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// ErrSessionNotFound is returned by Get for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database}
}

// EnsureSchema creates the history tables if needed.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, db.Schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Save stores a finished session and its rounds in one transaction. Saving the same
// session twice is a no-op.
func (r *Repository) Save(ctx context.Context, rec SessionRecord) error {
	session, rounds, err := toRows(rec)
	if err != nil {
		return err
	}

	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *db.Queries {
		return db.New(tx)
	}, func(q *db.Queries) error {
		inserted, err := q.InsertSession(ctx, session)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		if !inserted {
			return nil
		}
		for _, round := range rounds {
			if err := q.InsertRound(ctx, round); err != nil {
				return fmt.Errorf("failed to insert round %d: %w", round.RoundNumber, err)
			}
		}
		return nil
	})
}

func (r *Repository) Get(ctx context.Context, sessionID uuid.UUID) (*SessionRecord, error) {
	q := db.New(r.db)
	session, err := q.GetSession(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	rounds, err := q.ListRoundsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	return fromRows(session, rounds)
}

// ListByBattle returns the sessions played in one battle, newest first, without rounds.
func (r *Repository) ListByBattle(ctx context.Context, battleID uuid.UUID) ([]SessionRecord, error) {
	sessions, err := db.New(r.db).ListSessionsByBattle(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]SessionRecord, 0, len(sessions))
	for _, s := range sessions {
		rec, err := fromRows(s, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func toRows(rec SessionRecord) (db.BattleSession, []db.BattleRound, error) {
	opponent, err := json.Marshal(rec.Opponent)
	if err != nil {
		return db.BattleSession{}, nil, fmt.Errorf("failed to marshal opponent: %w", err)
	}
	session := db.BattleSession{
		ID:            rec.SessionID,
		BattleID:      rec.BattleID,
		Winner:        string(rec.Winner),
		PlayerScore:   int32(rec.PlayerScore),
		OpponentScore: int32(rec.OpponentScore),
		TotalRounds:   int32(rec.TotalRounds),
		Opponent:      pqtype.NullRawMessage{RawMessage: opponent, Valid: len(opponent) > 0},
		EndedAt:       rec.EndedAt,
	}

	rounds := make([]db.BattleRound, 0, len(rec.Rounds))
	for _, res := range rec.Rounds {
		rounds = append(rounds, db.BattleRound{
			SessionID:         rec.SessionID,
			RoundNumber:       int32(res.Round),
			Prompt:            res.Prompt,
			CorrectOption:     res.CorrectOption,
			PlayerSelection:   sqlutil.ToSqlInt32(selection(res.PlayerSelection)),
			OpponentSelection: sqlutil.ToSqlInt32(selection(res.OpponentSelection)),
			PlayerCorrect:     res.PlayerCorrect,
			OpponentCorrect:   res.OpponentCorrect,
			PlayerPoints:      int32(res.PlayerPoints),
			OpponentPoints:    int32(res.OpponentPoints),
			PlayerScore:       int32(res.PlayerScore),
			OpponentScore:     int32(res.OpponentScore),
			Resolution:        string(res.Resolution),
		})
	}
	return session, rounds, nil
}

func fromRows(s db.BattleSession, rounds []db.BattleRound) (*SessionRecord, error) {
	rec := &SessionRecord{
		SessionID:     s.ID,
		BattleID:      s.BattleID,
		Winner:        engine.Winner(s.Winner),
		PlayerScore:   int(s.PlayerScore),
		OpponentScore: int(s.OpponentScore),
		TotalRounds:   int(s.TotalRounds),
		EndedAt:       s.EndedAt,
	}
	if s.Opponent.Valid {
		if err := json.Unmarshal(s.Opponent.RawMessage, &rec.Opponent); err != nil {
			return nil, fmt.Errorf("failed to unmarshal opponent: %w", err)
		}
	}
	for _, r := range rounds {
		rec.Rounds = append(rec.Rounds, engine.RoundResult{
			Round:             int(r.RoundNumber),
			Prompt:            r.Prompt,
			CorrectOption:     r.CorrectOption,
			PlayerSelection:   fromSelection(r.PlayerSelection),
			OpponentSelection: fromSelection(r.OpponentSelection),
			PlayerCorrect:     r.PlayerCorrect,
			OpponentCorrect:   r.OpponentCorrect,
			PlayerPoints:      int(r.PlayerPoints),
			OpponentPoints:    int(r.OpponentPoints),
			PlayerScore:       int(r.PlayerScore),
			OpponentScore:     int(r.OpponentScore),
			Resolution:        engine.Resolution(r.Resolution),
		})
	}
	return rec, nil
}

// selection maps NoSelection to NULL.
func selection(sel int) *int {
	if sel == engine.NoSelection {
		return nil
	}
	return &sel
}

func fromSelection(v sql.NullInt32) int {
	if p := sqlutil.FromSqlInt32(v); p != nil {
		return *p
	}
	return engine.NoSelection
}
