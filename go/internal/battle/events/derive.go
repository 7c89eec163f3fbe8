package events

import (
	"time"

	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
)

// EventType names a battle domain event.
type EventType string

const (
	EventTypeRoundStarted   EventType = "RoundStarted"
	EventTypeAnswerSelected EventType = "AnswerSelected"
	EventTypeRoundResolved  EventType = "RoundResolved"
	EventTypeGameEnded      EventType = "GameEnded"
)

// Event is one domain event derived from an engine update.
type Event struct {
	Type    EventType
	Payload any
}

// Derive turns one engine update into the domain events it implies, in the order they
// happened.
func Derive(next, prev engine.State, at time.Time) []Event {
	var out []Event
	session := next.SessionID.String()

	if next.Phase == engine.PhaseQuestion && (prev.Phase != engine.PhaseQuestion || next.CurrentRound != prev.CurrentRound) {
		r := next.Round
		out = append(out, Event{Type: EventTypeRoundStarted, Payload: RoundStartedPayload{
			SessionID:    session,
			Round:        r.Number,
			TotalRounds:  next.TotalRounds,
			Prompt:       r.Question.Prompt,
			Options:      append([]string(nil), r.Question.Options[:]...),
			CountdownMax: r.CountdownMax,
			Final:        r.Final,
			StartedAt:    at,
		}})
	}

	if next.CurrentRound == prev.CurrentRound {
		for _, side := range []engine.Side{engine.SidePlayer, engine.SideOpponent} {
			a := next.Round.Answer(side)
			if !a.Selected() || prev.Round.Answer(side).Selected() {
				continue
			}
			out = append(out, Event{Type: EventTypeAnswerSelected, Payload: AnswerSelectedPayload{
				SessionID:  session,
				Round:      next.CurrentRound,
				Side:       string(side),
				Option:     a.Selection,
				Correct:    a.Verdict == engine.VerdictCorrect,
				Points:     a.Points,
				Score:      next.Score(side),
				SelectedAt: at,
			}})
		}
	}

	if len(next.History) > len(prev.History) {
		res := next.History[len(next.History)-1]
		out = append(out, Event{Type: EventTypeRoundResolved, Payload: RoundResolvedPayload{
			SessionID:       session,
			Round:           res.Round,
			Resolution:      string(res.Resolution),
			CorrectOption:   res.CorrectOption,
			PlayerCorrect:   res.PlayerCorrect,
			OpponentCorrect: res.OpponentCorrect,
			PlayerScore:     res.PlayerScore,
			OpponentScore:   res.OpponentScore,
			ResolvedAt:      at,
		}})
	}

	if next.Phase == engine.PhaseEnded && prev.Phase != engine.PhaseEnded {
		out = append(out, Event{Type: EventTypeGameEnded, Payload: GameEndedPayload{
			SessionID:     session,
			Winner:        string(next.Winner),
			PlayerScore:   next.PlayerScore,
			OpponentScore: next.OpponentScore,
			Rounds:        len(next.History),
			EndedAt:       at,
		}})
	}
	return out
}
