package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
)

type fakeStore struct {
	mu    sync.Mutex
	fail  bool
	saved []SessionRecord
}

func (s *fakeStore) Save(ctx context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("database unavailable")
	}
	s.saved = append(s.saved, rec)
	return nil
}

func (s *fakeStore) records() []SessionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SessionRecord(nil), s.saved...)
}

func oneRoundEngine(t *testing.T) (*engine.Engine, *clockwork.FakeClock) {
	t.Helper()
	var qs []questionbank.Question
	for i := 0; i < 3; i++ {
		qs = append(qs, questionbank.Question{
			Prompt:       fmt.Sprintf("q%d", i),
			Options:      [questionbank.OptionCount]string{"w", "x", "y", "z"},
			CorrectIndex: i,
		})
	}
	cfg := engine.DefaultConfig()
	cfg.TotalRounds = 1
	clk := clockwork.NewFakeClock()
	e := engine.New(cfg, questionbank.SourceFunc(func(context.Context) ([]questionbank.Question, error) {
		return qs, nil
	}), engine.WithClock(clk))
	t.Cleanup(e.Close)
	return e, clk
}

// playToEnd answers the single round for both sides and advances the clock until the
// session ends.
func playToEnd(t *testing.T, e *engine.Engine, clk *clockwork.FakeClock) {
	t.Helper()
	if err := e.StartNewGame(context.Background()); err != nil {
		t.Fatal(err)
	}
	correct := e.Snapshot().Round.Question.CorrectIndex
	if !e.SelectAnswer(engine.SidePlayer, correct) {
		t.Fatal("player selection rejected")
	}
	if !e.SelectAnswer(engine.SideOpponent, (correct+1)%questionbank.OptionCount) {
		t.Fatal("opponent selection rejected")
	}

	deadline := time.Now().Add(3 * time.Second)
	for e.Snapshot().Phase != engine.PhaseEnded {
		if time.Now().After(deadline) {
			t.Fatalf("session never ended, phase %s", e.Snapshot().Phase)
		}
		clk.Advance(250 * time.Millisecond)
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRecorderSavesEndedSession(t *testing.T) {
	e, clk := oneRoundEngine(t)
	store := &fakeStore{}
	rec := NewRecorder(store, time.Second)
	battleID := uuid.New()
	detach := rec.Attach(battleID, e)
	defer detach()

	playToEnd(t, e, clk)
	rec.Wait()

	saved := store.records()
	if len(saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(saved))
	}
	got := saved[0]
	final := e.Snapshot()
	if got.BattleID != battleID || got.SessionID != final.SessionID {
		t.Errorf("ids = %s/%s", got.BattleID, got.SessionID)
	}
	if got.Winner != engine.WinnerPlayer {
		t.Errorf("winner = %q, want player", got.Winner)
	}
	if diff := cmp.Diff(final.History, got.Rounds); diff != "" {
		t.Errorf("rounds mismatch (-engine +record):\n%s", diff)
	}
	if got.PlayerScore == 0 || got.PlayerScore != got.Rounds[0].PlayerPoints {
		t.Errorf("player score = %d, round points = %d", got.PlayerScore, got.Rounds[0].PlayerPoints)
	}
}

func TestRecorderIgnoresUnfinishedAndDetached(t *testing.T) {
	e, clk := oneRoundEngine(t)
	store := &fakeStore{}
	rec := NewRecorder(store, time.Second)
	detach := rec.Attach(uuid.New(), e)

	if err := e.StartNewGame(context.Background()); err != nil {
		t.Fatal(err)
	}
	e.SelectAnswer(engine.SidePlayer, 0)
	rec.Wait()
	if n := len(store.records()); n != 0 {
		t.Fatalf("saved %d records before the session ended", n)
	}

	detach()
	playToEnd(t, e, clk)
	rec.Wait()
	if n := len(store.records()); n != 0 {
		t.Errorf("saved %d records after detach", n)
	}
}

func TestRecorderSurvivesStoreFailure(t *testing.T) {
	e, clk := oneRoundEngine(t)
	rec := NewRecorder(&fakeStore{fail: true}, time.Second)
	defer rec.Attach(uuid.New(), e)()

	playToEnd(t, e, clk)
	rec.Wait()
	if e.Snapshot().Phase != engine.PhaseEnded {
		t.Error("engine affected by a failed save")
	}
}

func TestRowMappingKeepsNoSelection(t *testing.T) {
	rec := SessionRecord{
		SessionID:     uuid.New(),
		BattleID:      uuid.New(),
		Winner:        engine.WinnerOpponent,
		PlayerScore:   0,
		OpponentScore: 88,
		TotalRounds:   1,
		Opponent:      engine.OpponentProfile{Avatar: "B", Accuracy: 0.5, SpeedMsRange: [2]int{750, 1200}},
		Rounds: []engine.RoundResult{{
			Round:             1,
			Prompt:            "Capital of France?",
			CorrectOption:     "Paris",
			PlayerSelection:   engine.NoSelection,
			OpponentSelection: 1,
			OpponentCorrect:   true,
			OpponentPoints:    88,
			OpponentScore:     88,
			Resolution:        engine.ResolutionTimeout,
		}},
		EndedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	session, rounds, err := toRows(rec)
	if err != nil {
		t.Fatal(err)
	}
	if rounds[0].PlayerSelection.Valid {
		t.Error("NoSelection should be stored as NULL")
	}
	if !rounds[0].OpponentSelection.Valid || rounds[0].OpponentSelection.Int32 != 1 {
		t.Errorf("opponent selection = %+v", rounds[0].OpponentSelection)
	}

	back, err := fromRows(session, rounds)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rec, *back); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
}
