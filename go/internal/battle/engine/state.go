package engine

import (
	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
)

// Phase is the discrete state of the round state machine.
type Phase string

const (
	PhaseReady    Phase = "ready"
	PhaseQuestion Phase = "question"
	PhaseResult   Phase = "result"
	PhaseEnded    Phase = "ended"
)

// Side identifies one of the two competitors.
type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
)

// NoSelection marks a side that has not picked an option this round.
const NoSelection = -1

// Verdict is the tri-state correctness of a side's answer.
type Verdict int8

const (
	VerdictUnknown Verdict = iota
	VerdictCorrect
	VerdictIncorrect
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "correct"
	case VerdictIncorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// MarshalText renders the verdict as its name so snapshots read well as JSON.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Resolution records which path moved a round out of the question phase.
type Resolution string

const (
	ResolutionNone     Resolution = ""
	ResolutionAnswered Resolution = "answered"
	ResolutionTimeout  Resolution = "timeout"
)

// Winner of a finished session.
type Winner string

const (
	WinnerNone     Winner = ""
	WinnerPlayer   Winner = "player"
	WinnerOpponent Winner = "opponent"
	WinnerDraw     Winner = "draw"
)

// Answer is one side's working state inside a round.
type Answer struct {
	Selection int     `json:"selection"`
	Verdict   Verdict `json:"verdict"`
	Points    int     `json:"points"`
}

// Selected reports whether the side has locked in an option.
func (a Answer) Selected() bool {
	return a.Selection != NoSelection
}

func unanswered() Answer {
	return Answer{Selection: NoSelection}
}

// Round is the current-round working state. It is replaced wholesale at round start.
type Round struct {
	Number       int                   `json:"number"`
	Question     questionbank.Question `json:"question"`
	Player       Answer                `json:"player"`
	Opponent     Answer                `json:"opponent"`
	Countdown    int                   `json:"countdown"`
	CountdownMax int                   `json:"countdown_max"`
	TimerRunning bool                  `json:"timer_running"`
	Final        bool                  `json:"final"`
	Resolution   Resolution            `json:"resolution,omitempty"`
}

// Answer returns the working answer of the given side.
func (r Round) Answer(side Side) Answer {
	if side == SideOpponent {
		return r.Opponent
	}
	return r.Player
}

// BothSelected reports whether both sides have locked in an option.
func (r Round) BothSelected() bool {
	return r.Player.Selected() && r.Opponent.Selected()
}

// RoundResult is the archived outcome of a round. Never mutated after append.
type RoundResult struct {
	Round             int        `json:"round"`
	Prompt            string     `json:"prompt"`
	CorrectOption     string     `json:"correct_option"`
	PlayerSelection   int        `json:"player_selection"`
	OpponentSelection int        `json:"opponent_selection"`
	PlayerCorrect     bool       `json:"player_correct"`
	OpponentCorrect   bool       `json:"opponent_correct"`
	PlayerPoints      int        `json:"player_points"`
	OpponentPoints    int        `json:"opponent_points"`
	PlayerScore       int        `json:"player_score"`
	OpponentScore     int        `json:"opponent_score"`
	Resolution        Resolution `json:"resolution"`
}

// OpponentProfile holds the simulated opponent's look and AI parameters.
type OpponentProfile struct {
	Avatar       string  `json:"avatar"`
	Accuracy     float64 `json:"accuracy"`
	SpeedMsRange [2]int  `json:"speed_ms_range"`
}

// State is the full engine state. It is a value: every update produces a new State and
// the History slice is never written through after it has been published.
type State struct {
	SessionID     uuid.UUID       `json:"session_id"`
	Phase         Phase           `json:"phase"`
	CurrentRound  int             `json:"current_round"`
	TotalRounds   int             `json:"total_rounds"`
	PlayerScore   int             `json:"player_score"`
	OpponentScore int             `json:"opponent_score"`
	MaxScore      int             `json:"max_score"`
	Round         Round           `json:"round"`
	History       []RoundResult   `json:"history"`
	Opponent      OpponentProfile `json:"opponent"`
	Winner        Winner          `json:"winner,omitempty"`
}

// Score returns the running total of the given side.
func (s State) Score(side Side) int {
	if side == SideOpponent {
		return s.OpponentScore
	}
	return s.PlayerScore
}

// Field names a subscribable part of State.
type Field string

const (
	FieldSessionID         Field = "sessionId"
	FieldPhase             Field = "gamePhase"
	FieldCurrentRound      Field = "currentRound"
	FieldTotalRounds       Field = "totalRounds"
	FieldPlayerScore       Field = "playerScore"
	FieldOpponentScore     Field = "opponentScore"
	FieldMaxScore          Field = "maxScore"
	FieldQuestion          Field = "currentQuestion"
	FieldPlayerSelection   Field = "playerSelection"
	FieldOpponentSelection Field = "opponentSelection"
	FieldPlayerCorrect     Field = "playerCorrect"
	FieldOpponentCorrect   Field = "opponentCorrect"
	FieldBothSelected      Field = "bothSelected"
	FieldCountdown         Field = "timeLeft"
	FieldCountdownMax      Field = "currentMaxTime"
	FieldTimerRunning      Field = "timerRunning"
	FieldResolution        Field = "resolution"
	FieldHistory           Field = "history"
	FieldOpponent          Field = "opponent"
	FieldWinner            Field = "winner"
)

// Fields lists every subscribable field in notification order.
var Fields = []Field{
	FieldSessionID,
	FieldPhase,
	FieldCurrentRound,
	FieldTotalRounds,
	FieldPlayerScore,
	FieldOpponentScore,
	FieldMaxScore,
	FieldQuestion,
	FieldPlayerSelection,
	FieldOpponentSelection,
	FieldPlayerCorrect,
	FieldOpponentCorrect,
	FieldBothSelected,
	FieldCountdown,
	FieldCountdownMax,
	FieldTimerRunning,
	FieldResolution,
	FieldHistory,
	FieldOpponent,
	FieldWinner,
}

// Get returns the value of a single field, or nil for an unknown field.
// Slice values are returned as copies.
func (s State) Get(f Field) any {
	switch f {
	case FieldSessionID:
		return s.SessionID
	case FieldPhase:
		return s.Phase
	case FieldCurrentRound:
		return s.CurrentRound
	case FieldTotalRounds:
		return s.TotalRounds
	case FieldPlayerScore:
		return s.PlayerScore
	case FieldOpponentScore:
		return s.OpponentScore
	case FieldMaxScore:
		return s.MaxScore
	case FieldQuestion:
		return s.Round.Question
	case FieldPlayerSelection:
		return s.Round.Player.Selection
	case FieldOpponentSelection:
		return s.Round.Opponent.Selection
	case FieldPlayerCorrect:
		return s.Round.Player.Verdict
	case FieldOpponentCorrect:
		return s.Round.Opponent.Verdict
	case FieldBothSelected:
		return s.Round.BothSelected()
	case FieldCountdown:
		return s.Round.Countdown
	case FieldCountdownMax:
		return s.Round.CountdownMax
	case FieldTimerRunning:
		return s.Round.TimerRunning
	case FieldResolution:
		return s.Round.Resolution
	case FieldHistory:
		return append([]RoundResult(nil), s.History...)
	case FieldOpponent:
		return s.Opponent
	case FieldWinner:
		return s.Winner
	default:
		return nil
	}
}

// Changed lists the fields that differ between old and s, in Fields order.
func (s State) Changed(old State) []Field {
	var out []Field
	for _, f := range Fields {
		if f == FieldHistory {
			if !sameHistory(old.History, s.History) {
				out = append(out, f)
			}
			continue
		}
		if old.Get(f) != s.Get(f) {
			out = append(out, f)
		}
	}
	return out
}

func sameHistory(a, b []RoundResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// clone returns a copy whose History does not share a backing array with s.
func (s State) clone() State {
	s.History = append([]RoundResult(nil), s.History...)
	return s
}
