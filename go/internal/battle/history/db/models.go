package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type BattleSession struct {
	ID            uuid.UUID             `json:"id"`
	BattleID      uuid.UUID             `json:"battle_id"`
	Winner        string                `json:"winner"`
	PlayerScore   int32                 `json:"player_score"`
	OpponentScore int32                 `json:"opponent_score"`
	TotalRounds   int32                 `json:"total_rounds"`
	Opponent      pqtype.NullRawMessage `json:"opponent"`
	EndedAt       time.Time             `json:"ended_at"`
}

type BattleRound struct {
	SessionID         uuid.UUID     `json:"session_id"`
	RoundNumber       int32         `json:"round_number"`
	Prompt            string        `json:"prompt"`
	CorrectOption     string        `json:"correct_option"`
	PlayerSelection   sql.NullInt32 `json:"player_selection"`
	OpponentSelection sql.NullInt32 `json:"opponent_selection"`
	PlayerCorrect     bool          `json:"player_correct"`
	OpponentCorrect   bool          `json:"opponent_correct"`
	PlayerPoints      int32         `json:"player_points"`
	OpponentPoints    int32         `json:"opponent_points"`
	PlayerScore       int32         `json:"player_score"`
	OpponentScore     int32         `json:"opponent_score"`
	Resolution        string        `json:"resolution"`
}
