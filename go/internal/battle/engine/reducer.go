package engine

import (
	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
)

// Change is one state transition. Reduce applies it to a copy of the state.
type Change interface {
	apply(s State) State
}

// Reduce returns the state after c. s is never modified.
func Reduce(s State, c Change) State {
	return c.apply(s.clone())
}

func emptyRound() Round {
	return Round{Player: unanswered(), Opponent: unanswered()}
}

// StartSession clears scores, history and the round, and stamps a new session ID.
type StartSession struct {
	ID          uuid.UUID
	TotalRounds int
	MaxScore    int
}

func (c StartSession) apply(s State) State {
	s.SessionID = c.ID
	s.Phase = PhaseReady
	s.CurrentRound = 0
	s.TotalRounds = c.TotalRounds
	s.MaxScore = c.MaxScore
	s.PlayerScore = 0
	s.OpponentScore = 0
	s.History = nil
	s.Round = emptyRound()
	s.Winner = WinnerNone
	return s
}

// EnterRound replaces the round wholesale and opens the question phase.
type EnterRound struct {
	Number       int
	Question     questionbank.Question
	CountdownMax int
	Final        bool
}

func (c EnterRound) apply(s State) State {
	s.CurrentRound = c.Number
	s.Phase = PhaseQuestion
	s.Winner = WinnerNone
	s.Round = Round{
		Number:       c.Number,
		Question:     c.Question,
		Player:       unanswered(),
		Opponent:     unanswered(),
		Countdown:    c.CountdownMax,
		CountdownMax: c.CountdownMax,
		Final:        c.Final,
	}
	return s
}

// SetTimerRunning flips the countdown indicator.
type SetTimerRunning struct {
	Running bool
}

func (c SetTimerRunning) apply(s State) State {
	s.Round.TimerRunning = c.Running
	return s
}

// Tick decrements the countdown, never below zero.
type Tick struct{}

func (Tick) apply(s State) State {
	if s.Phase == PhaseQuestion && s.Round.Countdown > 0 {
		s.Round.Countdown--
	}
	return s
}

// Select records a side's answer. The answer is judged by option text and scores the
// remaining countdown when correct. Invalid selections leave the state unchanged.
type Select struct {
	Side  Side
	Index int
}

func (c Select) apply(s State) State {
	if s.Phase != PhaseQuestion || c.Index < 0 || c.Index >= questionbank.OptionCount {
		return s
	}
	a := s.Round.Answer(c.Side)
	if a.Selected() {
		return s
	}

	a.Selection = c.Index
	a.Verdict = VerdictIncorrect
	a.Points = 0
	if s.Round.Question.IsCorrect(c.Index) {
		a.Verdict = VerdictCorrect
		a.Points = s.Round.Countdown
	}

	switch c.Side {
	case SidePlayer:
		s.Round.Player = a
		s.PlayerScore += a.Points
	case SideOpponent:
		s.Round.Opponent = a
		s.OpponentScore += a.Points
	}
	return s
}

// Resolve closes the question phase and archives the round. A timeout forces the
// countdown to zero and marks every unanswered side incorrect without points.
type Resolve struct {
	Resolution Resolution
}

func (c Resolve) apply(s State) State {
	if s.Phase != PhaseQuestion {
		return s
	}
	r := s.Round
	if c.Resolution == ResolutionTimeout {
		r.Countdown = 0
		if !r.Player.Selected() {
			r.Player.Verdict = VerdictIncorrect
		}
		if !r.Opponent.Selected() {
			r.Opponent.Verdict = VerdictIncorrect
		}
	}
	r.TimerRunning = false
	r.Resolution = c.Resolution

	s.Round = r
	s.Phase = PhaseResult
	s.History = append(s.History, RoundResult{
		Round:             r.Number,
		Prompt:            r.Question.Prompt,
		CorrectOption:     r.Question.CorrectOption(),
		PlayerSelection:   r.Player.Selection,
		OpponentSelection: r.Opponent.Selection,
		PlayerCorrect:     r.Player.Verdict == VerdictCorrect,
		OpponentCorrect:   r.Opponent.Verdict == VerdictCorrect,
		PlayerPoints:      r.Player.Points,
		OpponentPoints:    r.Opponent.Points,
		PlayerScore:       s.PlayerScore,
		OpponentScore:     s.OpponentScore,
		Resolution:        c.Resolution,
	})
	return s
}

// End freezes the session and names the winner.
type End struct{}

func (End) apply(s State) State {
	s.Phase = PhaseEnded
	s.Round.TimerRunning = false
	switch {
	case s.PlayerScore > s.OpponentScore:
		s.Winner = WinnerPlayer
	case s.PlayerScore < s.OpponentScore:
		s.Winner = WinnerOpponent
	default:
		s.Winner = WinnerDraw
	}
	return s
}

// SetOpponent replaces the opponent profile.
type SetOpponent struct {
	Profile OpponentProfile
}

func (c SetOpponent) apply(s State) State {
	s.Opponent = c.Profile
	return s
}

// ResetState returns to ready with an empty session, keeping the opponent profile.
type ResetState struct{}

func (ResetState) apply(s State) State {
	s.SessionID = uuid.Nil
	s.Phase = PhaseReady
	s.CurrentRound = 0
	s.PlayerScore = 0
	s.OpponentScore = 0
	s.History = nil
	s.Round = emptyRound()
	s.Winner = WinnerNone
	return s
}
