package events

import (
	"time"
)

// Event payload types that are shared between the relay, gateway and history packages

// RoundStartedPayload is the payload for a RoundStarted event
type RoundStartedPayload struct {
	SessionID    string    `json:"session_id"`
	Round        int       `json:"round"`
	TotalRounds  int       `json:"total_rounds"`
	Prompt       string    `json:"prompt"`
	Options      []string  `json:"options"`
	CountdownMax int       `json:"countdown_max"`
	Final        bool      `json:"final"`
	StartedAt    time.Time `json:"started_at"`
}

// AnswerSelectedPayload is the payload for an AnswerSelected event
type AnswerSelectedPayload struct {
	SessionID  string    `json:"session_id"`
	Round      int       `json:"round"`
	Side       string    `json:"side"`
	Option     int       `json:"option"`
	Correct    bool      `json:"correct"`
	Points     int       `json:"points"`
	Score      int       `json:"score"`
	SelectedAt time.Time `json:"selected_at"`
}

// RoundResolvedPayload is the payload for a RoundResolved event
type RoundResolvedPayload struct {
	SessionID       string    `json:"session_id"`
	Round           int       `json:"round"`
	Resolution      string    `json:"resolution"`
	CorrectOption   string    `json:"correct_option"`
	PlayerCorrect   bool      `json:"player_correct"`
	OpponentCorrect bool      `json:"opponent_correct"`
	PlayerScore     int       `json:"player_score"`
	OpponentScore   int       `json:"opponent_score"`
	ResolvedAt      time.Time `json:"resolved_at"`
}

// GameEndedPayload is the payload for a GameEnded event
type GameEndedPayload struct {
	SessionID     string    `json:"session_id"`
	Winner        string    `json:"winner"`
	PlayerScore   int       `json:"player_score"`
	OpponentScore int       `json:"opponent_score"`
	Rounds        int       `json:"rounds"`
	EndedAt       time.Time `json:"ended_at"`
}
