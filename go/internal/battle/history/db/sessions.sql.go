package db

import (
	"context"

	"github.com/google/uuid"
)

const insertSession = `
INSERT INTO battle_sessions (id, battle_id, winner, player_score, opponent_score, total_rounds, opponent, ended_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
`

// InsertSession returns false when the session was already stored.
func (q *Queries) InsertSession(ctx context.Context, arg BattleSession) (bool, error) {
	res, err := q.db.ExecContext(ctx, insertSession,
		arg.ID,
		arg.BattleID,
		arg.Winner,
		arg.PlayerScore,
		arg.OpponentScore,
		arg.TotalRounds,
		arg.Opponent,
		arg.EndedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const insertRound = `
INSERT INTO battle_rounds (
    session_id, round_number, prompt, correct_option, player_selection, opponent_selection,
    player_correct, opponent_correct, player_points, opponent_points, player_score, opponent_score, resolution
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

func (q *Queries) InsertRound(ctx context.Context, arg BattleRound) error {
	_, err := q.db.ExecContext(ctx, insertRound,
		arg.SessionID,
		arg.RoundNumber,
		arg.Prompt,
		arg.CorrectOption,
		arg.PlayerSelection,
		arg.OpponentSelection,
		arg.PlayerCorrect,
		arg.OpponentCorrect,
		arg.PlayerPoints,
		arg.OpponentPoints,
		arg.PlayerScore,
		arg.OpponentScore,
		arg.Resolution,
	)
	return err
}

const getSession = `
SELECT id, battle_id, winner, player_score, opponent_score, total_rounds, opponent, ended_at
FROM battle_sessions
WHERE id = $1
`

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (BattleSession, error) {
	row := q.db.QueryRowContext(ctx, getSession, id)
	var i BattleSession
	err := row.Scan(
		&i.ID,
		&i.BattleID,
		&i.Winner,
		&i.PlayerScore,
		&i.OpponentScore,
		&i.TotalRounds,
		&i.Opponent,
		&i.EndedAt,
	)
	return i, err
}

const listSessionsByBattle = `
SELECT id, battle_id, winner, player_score, opponent_score, total_rounds, opponent, ended_at
FROM battle_sessions
WHERE battle_id = $1
ORDER BY ended_at DESC
`

func (q *Queries) ListSessionsByBattle(ctx context.Context, battleID uuid.UUID) ([]BattleSession, error) {
	rows, err := q.db.QueryContext(ctx, listSessionsByBattle, battleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BattleSession
	for rows.Next() {
		var i BattleSession
		if err := rows.Scan(
			&i.ID,
			&i.BattleID,
			&i.Winner,
			&i.PlayerScore,
			&i.OpponentScore,
			&i.TotalRounds,
			&i.Opponent,
			&i.EndedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRoundsBySession = `
SELECT session_id, round_number, prompt, correct_option, player_selection, opponent_selection,
       player_correct, opponent_correct, player_points, opponent_points, player_score, opponent_score, resolution
FROM battle_rounds
WHERE session_id = $1
ORDER BY round_number
`

func (q *Queries) ListRoundsBySession(ctx context.Context, sessionID uuid.UUID) ([]BattleRound, error) {
	rows, err := q.db.QueryContext(ctx, listRoundsBySession, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BattleRound
	for rows.Next() {
		var i BattleRound
		if err := rows.Scan(
			&i.SessionID,
			&i.RoundNumber,
			&i.Prompt,
			&i.CorrectOption,
			&i.PlayerSelection,
			&i.OpponentSelection,
			&i.PlayerCorrect,
			&i.OpponentCorrect,
			&i.PlayerPoints,
			&i.OpponentPoints,
			&i.PlayerScore,
			&i.OpponentScore,
			&i.Resolution,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
