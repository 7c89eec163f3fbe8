package questionbank

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func bankOf(n int) []Question {
	out := make([]Question, n)
	for i := range out {
		out[i] = Question{
			Prompt:       string(rune('a' + i)),
			Options:      [OptionCount]string{"w", "x", "y", "z"},
			CorrectIndex: i % OptionCount,
		}
	}
	return out
}

func TestParse(t *testing.T) {
	data := []byte(`{
		"Capital of France?": {"options": ["Paris", "Lyon", "Nice", "Lille"], "answer": 0, "updated_at": "2025-01-01T00:00:00Z"},
		"Too few options": {"options": ["a", "b", "c"], "answer": 0},
		"Answer out of range": {"options": ["a", "b", "c", "d"], "answer": 4},
		"Negative answer": {"options": ["a", "b", "c", "d"], "answer": -1},
		"Wrong shape": "not an object",
		"Largest planet?": {"options": ["Mars", "Jupiter", "Venus", "Earth"], "answer": 1}
	}`)

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []Question{
		{Prompt: "Capital of France?", Options: [OptionCount]string{"Paris", "Lyon", "Nice", "Lille"}, CorrectIndex: 0},
		{Prompt: "Largest planet?", Options: [OptionCount]string{"Mars", "Jupiter", "Venus", "Earth"}, CorrectIndex: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsNonObject(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "array", data: `[1, 2, 3]`},
		{name: "null", data: `null`},
		{name: "garbage", data: `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrMalformedBank) {
				t.Errorf("Parse(%s) error = %v, want ErrMalformedBank", tt.data, err)
			}
		})
	}
}

func TestIsCorrectComparesText(t *testing.T) {
	q := Question{
		Prompt:       "Capital of France?",
		Options:      [OptionCount]string{"Paris", "Lyon", "Nice", "Lille"},
		CorrectIndex: 0,
	}

	shuffled := q
	shuffled.Options = [OptionCount]string{"Lille", "Paris", "Nice", "Lyon"}
	shuffled.CorrectIndex = 1

	if !shuffled.IsCorrect(1) {
		t.Error("IsCorrect(1) = false after shuffle, want true")
	}
	for _, idx := range []int{0, 2, 3, -1, 4} {
		if shuffled.IsCorrect(idx) {
			t.Errorf("IsCorrect(%d) = true, want false", idx)
		}
	}
	if got := shuffled.WrongIndices(); !cmp.Equal(got, []int{0, 2, 3}) {
		t.Errorf("WrongIndices() = %v, want [0 2 3]", got)
	}
}

func TestShuffleOptionsTracksCorrectText(t *testing.T) {
	r := newRand(7)
	q := Question{
		Prompt:       "Capital of France?",
		Options:      [OptionCount]string{"Paris", "Lyon", "Nice", "Lille"},
		CorrectIndex: 0,
	}

	moved := false
	for i := 0; i < 200; i++ {
		s := ShuffleOptions(r, q)
		if s.CorrectOption() != "Paris" {
			t.Fatalf("ShuffleOptions() correct option = %q, want Paris (options %v)", s.CorrectOption(), s.Options)
		}
		if s.CorrectIndex != 0 {
			moved = true
		}
		if !cmp.Equal(sortedOptions(s), sortedOptions(q)) {
			t.Fatalf("ShuffleOptions() changed the option set: %v", s.Options)
		}
	}
	if !moved {
		t.Error("correct index never moved across 200 shuffles")
	}
	if q.Options[0] != "Paris" {
		t.Error("ShuffleOptions() mutated its input")
	}
}

func sortedOptions(q Question) map[string]int {
	m := make(map[string]int)
	for _, o := range q.Options {
		m[o]++
	}
	return m
}

func TestDrawNeverRepeats(t *testing.T) {
	r := newRand(42)
	bank := bankOf(12)

	for trial := 0; trial < 100; trial++ {
		got := Draw(r, bank, 5)
		if len(got) != 5 {
			t.Fatalf("Draw() len = %d, want 5", len(got))
		}
		seen := make(map[string]bool)
		for _, q := range got {
			if seen[q.Prompt] {
				t.Fatalf("Draw() repeated %q in %v", q.Prompt, got)
			}
			seen[q.Prompt] = true
		}
	}
	if bank[0].Prompt != "a" || bank[11].Prompt != "l" {
		t.Error("Draw() reordered the bank it was given")
	}
}

func TestDrawSmallBankWraps(t *testing.T) {
	r := newRand(1)
	pool := Draw(r, bankOf(2), 5)
	if len(pool) != 2 {
		t.Fatalf("Draw() len = %d, want 2", len(pool))
	}
	for round := 1; round <= 5; round++ {
		q := At(pool, round)
		if want := pool[(round-1)%2]; q != want {
			t.Errorf("At(pool, %d) = %q, want %q", round, q.Prompt, want.Prompt)
		}
	}
}

func TestAtEmptyPoolIsPlaceholder(t *testing.T) {
	if got := At(nil, 3); got != Placeholder() {
		t.Errorf("At(nil, 3) = %+v, want placeholder", got)
	}
}

func TestDedupKeepsFirst(t *testing.T) {
	qs := []Question{
		{Prompt: "q1", CorrectIndex: 0},
		{Prompt: "q2", CorrectIndex: 1},
		{Prompt: "q1", CorrectIndex: 3},
	}
	got := Dedup(qs)
	if len(got) != 2 || got[0].CorrectIndex != 0 {
		t.Errorf("Dedup() = %+v", got)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qb.json")
	if err := os.WriteFile(path, []byte(`{"q": {"options": ["a","b","c","d"], "answer": 2}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewFileSource(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 || got[0].CorrectOption() != "c" {
		t.Errorf("Load() = %+v", got)
	}

	if _, err := NewFileSource(filepath.Join(dir, "missing.json")).Load(context.Background()); err == nil {
		t.Error("Load() of a missing file returned no error")
	}
}

func TestHTTPSource(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: `{"q": {"options": ["a","b","c","d"], "answer": 1}}`, want: 1},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: true},
		{name: "malformed", status: http.StatusOK, body: `["nope"]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Cache-Control") != "no-store" {
					t.Errorf("Cache-Control = %q, want no-store", r.Header.Get("Cache-Control"))
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewHTTPSource(srv.URL).Load(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("Load() returned %d questions, want %d", len(got), tt.want)
			}
		})
	}
}
