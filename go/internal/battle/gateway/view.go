package gateway

import (
	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
)

// QuestionView is the question as the renderer sees it. CorrectIndex is withheld while
// the round is still open.
type QuestionView struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index,omitempty"`
}

// AnswerView is one side's answer. Nil fields mean not answered or not yet revealed.
type AnswerView struct {
	Selection *int  `json:"selection"`
	Correct   *bool `json:"correct"`
	Points    int   `json:"points"`
}

// StateView is the JSON shape pushed to the renderer and served by the state endpoint.
type StateView struct {
	BattleID       string                 `json:"battle_id"`
	SessionID      string                 `json:"session_id,omitempty"`
	Phase          engine.Phase           `json:"phase"`
	CurrentRound   int                    `json:"current_round"`
	TotalRounds    int                    `json:"total_rounds"`
	PlayerScore    int                    `json:"player_score"`
	OpponentScore  int                    `json:"opponent_score"`
	MaxScore       int                    `json:"max_score"`
	Question       *QuestionView          `json:"question,omitempty"`
	Player         AnswerView             `json:"player"`
	Opponent       AnswerView             `json:"opponent"`
	BothSelected   bool                   `json:"both_selected"`
	TimeLeft       int                    `json:"time_left"`
	CurrentMaxTime int                    `json:"current_max_time"`
	TimerRunning   bool                   `json:"timer_running"`
	FinalRound     bool                   `json:"final_round"`
	Resolution     engine.Resolution      `json:"resolution,omitempty"`
	History        []engine.RoundResult   `json:"history"`
	OpponentInfo   engine.OpponentProfile `json:"opponent_info"`
	Winner         engine.Winner          `json:"winner,omitempty"`
}

// NewStateView renders s for battleID. While the round is in the question phase the
// correct index is hidden, and so is the opponent's verdict until the player answered.
func NewStateView(battleID uuid.UUID, s engine.State) StateView {
	v := StateView{
		BattleID:       battleID.String(),
		Phase:          s.Phase,
		CurrentRound:   s.CurrentRound,
		TotalRounds:    s.TotalRounds,
		PlayerScore:    s.PlayerScore,
		OpponentScore:  s.OpponentScore,
		MaxScore:       s.MaxScore,
		BothSelected:   s.Round.BothSelected(),
		TimeLeft:       s.Round.Countdown,
		CurrentMaxTime: s.Round.CountdownMax,
		TimerRunning:   s.Round.TimerRunning,
		FinalRound:     s.Round.Final,
		Resolution:     s.Round.Resolution,
		History:        append([]engine.RoundResult{}, s.History...),
		OpponentInfo:   s.Opponent,
		Winner:         s.Winner,
	}
	if s.SessionID != uuid.Nil {
		v.SessionID = s.SessionID.String()
	}

	open := s.Phase == engine.PhaseQuestion
	if s.Round.Number > 0 {
		q := s.Round.Question
		v.Question = &QuestionView{
			Prompt:  q.Prompt,
			Options: append([]string(nil), q.Options[:]...),
		}
		if !open {
			idx := q.CorrectIndex
			v.Question.CorrectIndex = &idx
		}
	}

	v.Player = answerView(s.Round.Player, true)
	v.Opponent = answerView(s.Round.Opponent, !open || s.Round.Player.Selected())
	return v
}

func answerView(a engine.Answer, reveal bool) AnswerView {
	var v AnswerView
	if a.Selected() {
		sel := a.Selection
		v.Selection = &sel
	}
	if reveal && a.Verdict != engine.VerdictUnknown {
		correct := a.Verdict == engine.VerdictCorrect
		v.Correct = &correct
		v.Points = a.Points
	}
	return v
}
