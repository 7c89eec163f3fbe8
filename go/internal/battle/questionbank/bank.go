package questionbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// ErrMalformedBank is returned when a bank document is not a JSON object.
var ErrMalformedBank = errors.New("question bank is not a JSON object")

// Question is a prompt with exactly four options and the index of the correct one.
type Question struct {
	Prompt       string              `json:"prompt"`
	Options      [OptionCount]string `json:"options"`
	CorrectIndex int                 `json:"correct_index"`
}

// CorrectOption returns the text of the correct option.
func (q Question) CorrectOption() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// IsCorrect compares the option at idx with the correct option by text, so the
// answer stays right however the options were shuffled.
func (q Question) IsCorrect(idx int) bool {
	if idx < 0 || idx >= OptionCount {
		return false
	}
	return q.Options[idx] == q.CorrectOption()
}

// WrongIndices returns the indices of the options that are not the correct answer.
func (q Question) WrongIndices() []int {
	out := make([]int, 0, OptionCount-1)
	for i := range q.Options {
		if !q.IsCorrect(i) {
			out = append(out, i)
		}
	}
	return out
}

// Placeholder is served while no bank is available.
func Placeholder() Question {
	return Question{
		Prompt:       "Question bank is loading, please retry",
		Options:      [OptionCount]string{"A", "B", "C", "D"},
		CorrectIndex: 0,
	}
}

// Entry is the on-disk shape of one qb.json value.
type Entry struct {
	Options   []string `json:"options"`
	Answer    int      `json:"answer"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// valid reports whether the entry can become a Question.
func (e Entry) valid() bool {
	return len(e.Options) == OptionCount && e.Answer >= 0 && e.Answer < OptionCount
}

// Question converts a valid entry into a Question.
func (e Entry) Question(prompt string) (Question, error) {
	if prompt == "" {
		return Question{}, fmt.Errorf("empty prompt")
	}
	if !e.valid() {
		return Question{}, fmt.Errorf("question %q: need %d options and answer in [0,%d), got %d options and answer %d",
			prompt, OptionCount, OptionCount, len(e.Options), e.Answer)
	}
	q := Question{Prompt: prompt, CorrectIndex: e.Answer}
	copy(q.Options[:], e.Options)
	return q, nil
}

// EntryFor converts a Question back to its qb.json value.
func EntryFor(q Question, updatedAt time.Time) Entry {
	e := Entry{Options: append([]string(nil), q.Options[:]...), Answer: q.CorrectIndex}
	if !updatedAt.IsZero() {
		e.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	}
	return e
}

// Parse decodes a qb.json document: an object mapping question text to an Entry.
// Entries that do not decode or do not have exactly four options and an answer in
// range are dropped. The result is sorted by prompt.
func Parse(data []byte) ([]Question, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBank, err)
	}
	if raw == nil {
		return nil, ErrMalformedBank
	}

	out := make([]Question, 0, len(raw))
	dropped := 0
	for prompt, msg := range raw {
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			dropped++
			continue
		}
		q, err := e.Question(prompt)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prompt < out[j].Prompt })

	if dropped > 0 {
		log.Debug().Int("dropped", dropped).Int("kept", len(out)).Msg("dropped malformed question bank entries")
	}
	return out, nil
}

// Dedup removes questions whose prompt was already seen, keeping the first.
func Dedup(questions []Question) []Question {
	seen := make(map[string]struct{}, len(questions))
	out := make([]Question, 0, len(questions))
	for _, q := range questions {
		if _, ok := seen[q.Prompt]; ok {
			continue
		}
		seen[q.Prompt] = struct{}{}
		out = append(out, q)
	}
	return out
}

// Draw returns up to n distinct questions from bank: a Fisher–Yates shuffle of a copy,
// truncated to n. The bank itself is left untouched.
func Draw(r *rand.Rand, bank []Question, n int) []Question {
	pool := append([]Question(nil), bank...)
	shuffle(r, len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if n < len(pool) {
		pool = pool[:n]
	}
	return pool
}

// ShuffleOptions returns q with its options in a fresh Fisher–Yates order and the
// correct index re-located by text.
func ShuffleOptions(r *rand.Rand, q Question) Question {
	correct := q.CorrectOption()
	shuffle(r, OptionCount, func(i, j int) { q.Options[i], q.Options[j] = q.Options[j], q.Options[i] })
	for i, opt := range q.Options {
		if opt == correct {
			q.CorrectIndex = i
			break
		}
	}
	return q
}

// At returns the question for a 1-based round, wrapping when the pool is shorter than the
// session, and the placeholder when the pool is empty.
func At(pool []Question, round int) Question {
	if len(pool) == 0 {
		return Placeholder()
	}
	idx := (round - 1) % len(pool)
	if idx < 0 {
		idx += len(pool)
	}
	return pool[idx]
}

func shuffle(r *rand.Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		swap(i, j)
	}
}
