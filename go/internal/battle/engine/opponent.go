package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
)

// OpponentStrategy decides when and what the simulated opponent answers.
type OpponentStrategy interface {
	// Delay is how long after the opponent is scheduled it answers.
	Delay(p OpponentProfile) time.Duration
	// Choose returns the option index the opponent picks.
	Choose(q questionbank.Question, p OpponentProfile) int
}

// RandomStrategy answers correctly with probability p.Accuracy and otherwise picks
// uniformly among the wrong options, after a delay uniform in p.SpeedMsRange.
type RandomStrategy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomStrategy constructs a RandomStrategy. A nil r gets its own time seed.
func NewRandomStrategy(r *rand.Rand) *RandomStrategy {
	if r == nil {
		seed := uint64(time.Now().UnixNano())
		r = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &RandomStrategy{rng: r}
}

func (s *RandomStrategy) Delay(p OpponentProfile) time.Duration {
	lo, hi := p.SpeedMsRange[0], p.SpeedMsRange[1]
	if hi <= lo {
		return time.Duration(lo) * time.Millisecond
	}
	s.mu.Lock()
	ms := lo + s.rng.IntN(hi-lo+1)
	s.mu.Unlock()
	return time.Duration(ms) * time.Millisecond
}

func (s *RandomStrategy) Choose(q questionbank.Question, p OpponentProfile) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng.Float64() < clampAccuracy(p.Accuracy) {
		return q.CorrectIndex
	}
	wrong := q.WrongIndices()
	if len(wrong) == 0 {
		return q.CorrectIndex
	}
	return wrong[s.rng.IntN(len(wrong))]
}

// OpponentConfig is a partial opponent update. Nil fields keep their current value.
type OpponentConfig struct {
	Avatar       *string  `json:"avatar,omitempty"`
	Accuracy     *float64 `json:"accuracy,omitempty"`
	SpeedMsRange *[2]int  `json:"speed_ms_range,omitempty"`
}

// Validate reports a speed range that ConfigureOpponent would ignore.
func (c OpponentConfig) Validate() error {
	if c.SpeedMsRange != nil && !validSpeedRange(*c.SpeedMsRange) {
		return fmt.Errorf("invalid speed_ms_range %v: want 0 <= min <= max", *c.SpeedMsRange)
	}
	return nil
}

// merge applies c to p. Accuracy is clamped to [0,1]; an invalid speed range is ignored.
func (c OpponentConfig) merge(p OpponentProfile) (OpponentProfile, bool) {
	ok := true
	if c.Avatar != nil && *c.Avatar != "" {
		p.Avatar = *c.Avatar
	}
	if c.Accuracy != nil {
		p.Accuracy = clampAccuracy(*c.Accuracy)
	}
	if c.SpeedMsRange != nil {
		if validSpeedRange(*c.SpeedMsRange) {
			p.SpeedMsRange = *c.SpeedMsRange
		} else {
			ok = false
		}
	}
	return p, ok
}

func clampAccuracy(a float64) float64 {
	switch {
	case a != a: // NaN
		return 0
	case a < 0:
		return 0
	case a > 1:
		return 1
	default:
		return a
	}
}

func validSpeedRange(r [2]int) bool {
	return r[0] >= 0 && r[1] >= r[0]
}
