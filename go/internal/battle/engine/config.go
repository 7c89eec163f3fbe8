package engine

import (
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Config holds the tunables of a battle. Zero fields fall back to DefaultConfig.
type Config struct {
	TotalRounds   int
	RoundMaxTime  int // countdown units per round, doubled on the final round
	TickInterval  time.Duration
	EntranceDelay time.Duration
	FeedbackDelay time.Duration
	AdvanceDelay  time.Duration
	MaxScore      int
	Opponent      OpponentProfile
}

// DefaultConfig returns the stock five-round battle.
func DefaultConfig() Config {
	return Config{
		TotalRounds:   5,
		RoundMaxTime:  150,
		TickInterval:  125 * time.Millisecond,
		EntranceDelay: 1500 * time.Millisecond,
		FeedbackDelay: 1500 * time.Millisecond,
		AdvanceDelay:  1000 * time.Millisecond,
		MaxScore:      1500,
		Opponent: OpponentProfile{
			Avatar:       "B",
			Accuracy:     0.5,
			SpeedMsRange: [2]int{750, 1200},
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TotalRounds <= 0 {
		c.TotalRounds = d.TotalRounds
	}
	if c.RoundMaxTime <= 0 {
		c.RoundMaxTime = d.RoundMaxTime
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.EntranceDelay <= 0 {
		c.EntranceDelay = d.EntranceDelay
	}
	if c.FeedbackDelay <= 0 {
		c.FeedbackDelay = d.FeedbackDelay
	}
	if c.AdvanceDelay <= 0 {
		c.AdvanceDelay = d.AdvanceDelay
	}
	if c.MaxScore <= 0 {
		c.MaxScore = d.MaxScore
	}
	if c.Opponent == (OpponentProfile{}) {
		c.Opponent = d.Opponent
	}
	if c.Opponent.Avatar == "" {
		c.Opponent.Avatar = d.Opponent.Avatar
	}
	if !validSpeedRange(c.Opponent.SpeedMsRange) || c.Opponent.SpeedMsRange == [2]int{} {
		c.Opponent.SpeedMsRange = d.Opponent.SpeedMsRange
	}
	c.Opponent.Accuracy = clampAccuracy(c.Opponent.Accuracy)
	return c
}

// Clock is the subset of clockwork.Clock the engine schedules on.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
	NewTicker(d time.Duration) clockwork.Ticker
}

// Option customises an Engine at construction.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRand sets the source used for question draws and option shuffles.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithStrategy replaces the opponent strategy.
func WithStrategy(s OpponentStrategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithLogger sets the logger, usually one carrying a battle_id field.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}
