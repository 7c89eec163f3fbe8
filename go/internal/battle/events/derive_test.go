package events

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
)

func roundState(round int) engine.State {
	return engine.State{
		SessionID:    uuid.MustParse("7f1c4c0e-2a8e-4f5e-9a61-0d7e3b7d6a11"),
		Phase:        engine.PhaseQuestion,
		CurrentRound: round,
		TotalRounds:  5,
		Round: engine.Round{
			Number: round,
			Question: questionbank.Question{
				Prompt:       "Largest planet?",
				Options:      [questionbank.OptionCount]string{"Mars", "Jupiter", "Venus", "Earth"},
				CorrectIndex: 1,
			},
			Player:       engine.Answer{Selection: engine.NoSelection},
			Opponent:     engine.Answer{Selection: engine.NoSelection},
			Countdown:    150,
			CountdownMax: 150,
		},
	}
}

func types(evts []Event) []EventType {
	var out []EventType
	for _, e := range evts {
		out = append(out, e.Type)
	}
	return out
}

func TestDerive(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ready := roundState(0)
	ready.Phase = engine.PhaseReady

	selected := roundState(2)
	selected.Round.Player = engine.Answer{Selection: 1, Verdict: engine.VerdictCorrect, Points: 150}
	selected.PlayerScore = 150

	resolved := selected
	resolved.Phase = engine.PhaseResult
	resolved.History = []engine.RoundResult{{Round: 2, Resolution: engine.ResolutionTimeout, PlayerScore: 150}}

	ended := resolved
	ended.Phase = engine.PhaseEnded
	ended.Winner = engine.WinnerPlayer

	tests := []struct {
		name       string
		prev, next engine.State
		want       []EventType
	}{
		{name: "round start", prev: ready, next: roundState(1), want: []EventType{EventTypeRoundStarted}},
		{name: "next round", prev: resolved, next: roundState(3), want: []EventType{EventTypeRoundStarted}},
		{name: "answer", prev: roundState(2), next: selected, want: []EventType{EventTypeAnswerSelected}},
		{name: "resolve", prev: selected, next: resolved, want: []EventType{EventTypeRoundResolved}},
		{name: "end", prev: resolved, next: ended, want: []EventType{EventTypeGameEnded}},
		{name: "tick", prev: roundState(2), next: func() engine.State { s := roundState(2); s.Round.Countdown = 149; return s }(), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.next, tt.prev, at)
			if diff := cmp.Diff(tt.want, types(got)); diff != "" {
				t.Errorf("Derive() types mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeriveAnswerPayload(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := roundState(2)
	next := roundState(2)
	next.Round.Opponent = engine.Answer{Selection: 3, Verdict: engine.VerdictIncorrect}

	got := Derive(next, prev, at)
	if len(got) != 1 {
		t.Fatalf("Derive() = %+v, want one event", got)
	}
	want := AnswerSelectedPayload{
		SessionID:  "7f1c4c0e-2a8e-4f5e-9a61-0d7e3b7d6a11",
		Round:      2,
		Side:       "opponent",
		Option:     3,
		SelectedAt: at,
	}
	if diff := cmp.Diff(want, got[0].Payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}
