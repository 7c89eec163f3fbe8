package engine

import (
	"testing"
	"time"
)

func TestListenerPanicIsIsolated(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, stubStrategy{delay: time.Hour})

	var wildcard, field int
	e.SubscribeAll(func(State, State, []Field) { panic("boom") })
	e.SubscribeAll(func(next, prev State, changed []Field) {
		wildcard++
		if next.Opponent.Avatar != "Z" || prev.Opponent.Avatar != "B" {
			t.Errorf("got %q -> %q, want B -> Z", prev.Opponent.Avatar, next.Opponent.Avatar)
		}
		if len(changed) != 1 || changed[0] != FieldOpponent {
			t.Errorf("changed = %v, want [opponent]", changed)
		}
	})
	e.Subscribe(FieldOpponent, func(any, any) { panic("boom") })
	Watch(e, FieldOpponent, func(nv, _ OpponentProfile) {
		field++
	})

	avatar := "Z"
	e.ConfigureOpponent(OpponentConfig{Avatar: &avatar})

	if wildcard != 1 || field != 1 {
		t.Errorf("deliveries wildcard=%d field=%d, want 1 and 1", wildcard, field)
	}
}

func TestUnsubscribe(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, stubStrategy{delay: time.Hour})

	var calls int
	unsub := e.Subscribe(FieldOpponent, func(any, any) { calls++ })
	other := e.SubscribeAll(func(State, State, []Field) {})

	acc := 0.9
	e.ConfigureOpponent(OpponentConfig{Accuracy: &acc})
	unsub()
	unsub()
	other()
	acc = 0.1
	e.ConfigureOpponent(OpponentConfig{Accuracy: &acc})

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestSubscribersDoNotSeeUnchangedFields(t *testing.T) {
	e, _ := newTestEngine(t, DefaultConfig(), nil, stubStrategy{delay: time.Hour})

	var calls int
	e.Subscribe(FieldPlayerScore, func(any, any) { calls++ })
	e.SubscribeAll(func(State, State, []Field) { calls++ })

	// Same values as the defaults: no update is committed.
	acc := 0.5
	e.ConfigureOpponent(OpponentConfig{Accuracy: &acc})

	if calls != 0 {
		t.Errorf("listeners called %d times for a no-op update", calls)
	}
}
