package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizbattle/go/internal/battle/questionbank"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

// Engine runs one quiz battle: rounds, countdown, the simulated opponent and scoring.
// It is safe for concurrent use. Updates are committed under one lock and delivered to
// listeners afterwards, in commit order, so listeners may call back into the engine.
type Engine struct {
	cfg      Config
	source   questionbank.Source
	clock    Clock
	rng      *rand.Rand
	strategy OpponentStrategy
	log      zerolog.Logger
	bus      *bus

	// loadMu serialises bank loads; bank and bankLoaded are only touched under it.
	loadMu     sync.Mutex
	bank       []questionbank.Question
	bankLoaded bool

	mu          sync.Mutex
	state       State
	pool        []questionbank.Question
	timers      [slotCount]*handle
	pending     []notification
	dispatching bool
	sessionSeq  uint64
	closed      bool
}

// New creates an engine in the ready phase. source may be nil, in which case every
// round shows the placeholder question.
func New(cfg Config, source questionbank.Source, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		source: source,
		clock:  clockwork.NewRealClock(),
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		seed := uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
	}
	if e.strategy == nil {
		e.strategy = NewRandomStrategy(nil)
	}
	e.bus = newBus(&e.log)
	e.state = State{
		Phase:       PhaseReady,
		TotalRounds: cfg.TotalRounds,
		MaxScore:    cfg.MaxScore,
		Round:       emptyRound(),
		Opponent:    cfg.Opponent,
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// StartNewGame cancels every timer, starts a fresh session and enters round 1. The bank
// is loaded on first use; a failed load is retried on the next call and leaves the
// session on the placeholder question. A newer call supersedes one still loading.
func (e *Engine) StartNewGame(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.sessionSeq++
	seq := e.sessionSeq
	e.cancelAllTimersLocked()
	e.pool = nil
	e.commitLocked(StartSession{
		ID:          uuid.New(),
		TotalRounds: e.cfg.TotalRounds,
		MaxScore:    e.cfg.MaxScore,
	})
	e.mu.Unlock()
	e.drain()

	bank := e.loadBank(ctx)

	e.mu.Lock()
	if e.closed || seq != e.sessionSeq {
		e.mu.Unlock()
		e.log.Debug().Uint64("session_seq", seq).Msg("new game superseded before first round")
		return nil
	}
	e.pool = questionbank.Draw(e.rng, bank, e.cfg.TotalRounds)
	e.log.Info().
		Str("session_id", e.state.SessionID.String()).
		Int("pool", len(e.pool)).
		Int("total_rounds", e.cfg.TotalRounds).
		Msg("new game started")
	e.startRoundLocked(1)
	e.mu.Unlock()
	e.drain()
	return nil
}

func (e *Engine) loadBank(ctx context.Context) []questionbank.Question {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()
	if e.bankLoaded {
		return e.bank
	}
	if e.source == nil {
		return nil
	}
	questions, err := e.source.Load(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to load question bank, using placeholder")
		return nil
	}
	e.bank = questions
	e.bankLoaded = true
	return e.bank
}

// StartRound cancels pending timers and opens round n. n is clamped to the session.
func (e *Engine) StartRound(n int) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.startRoundLocked(n)
	e.mu.Unlock()
	e.drain()
}

func (e *Engine) startRoundLocked(n int) {
	e.cancelAllTimersLocked()
	total := e.state.TotalRounds
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}

	q := questionbank.At(e.pool, n)
	if len(e.pool) > 0 {
		q = questionbank.ShuffleOptions(e.rng, q)
	}
	final := n == total
	countdown := e.cfg.RoundMaxTime
	if final {
		countdown *= 2
	}

	e.commitLocked(EnterRound{
		Number:       n,
		Question:     q,
		CountdownMax: countdown,
		Final:        final,
	})
	e.log.Debug().Int("round", n).Int("countdown", countdown).Bool("final", final).Msg("round started")
	e.armTimerLocked(slotEntrance, e.cfg.EntranceDelay, e.onEntranceLocked)
}

func (e *Engine) onEntranceLocked() {
	if e.state.Phase != PhaseQuestion || e.state.Round.BothSelected() {
		return
	}
	e.commitLocked(SetTimerRunning{Running: true})
	e.armTickerLocked(slotCountdown, e.cfg.TickInterval, e.onTickLocked)
	e.scheduleOpponentLocked()
}

func (e *Engine) onTickLocked() {
	if e.state.Phase != PhaseQuestion {
		e.cancelTimerLocked(slotCountdown)
		return
	}
	e.commitLocked(Tick{})
	if e.state.Round.Countdown == 0 {
		e.log.Debug().Int("round", e.state.CurrentRound).Msg("round timed out")
		e.resolveLocked(ResolutionTimeout)
	}
}

// SelectAnswer locks in side's answer for the current round. It reports whether the
// selection was applied; a wrong phase, a repeated selection or an index outside
// [0,3] is ignored.
func (e *Engine) SelectAnswer(side Side, optionIndex int) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	ok := e.selectLocked(side, optionIndex)
	e.mu.Unlock()
	e.drain()
	return ok
}

func (e *Engine) selectLocked(side Side, idx int) bool {
	if side != SidePlayer && side != SideOpponent {
		e.log.Debug().Str("side", string(side)).Msg("ignoring selection from unknown side")
		return false
	}
	if e.state.Phase != PhaseQuestion {
		e.log.Debug().Str("side", string(side)).Str("phase", string(e.state.Phase)).Msg("ignoring selection outside question phase")
		return false
	}
	if e.state.Round.Answer(side).Selected() {
		e.log.Debug().Str("side", string(side)).Msg("ignoring repeated selection")
		return false
	}
	if idx < 0 || idx >= questionbank.OptionCount {
		e.log.Debug().Str("side", string(side)).Int("option", idx).Msg("ignoring out of range selection")
		return false
	}

	e.commitLocked(Select{Side: side, Index: idx})
	a := e.state.Round.Answer(side)
	e.log.Debug().
		Int("round", e.state.CurrentRound).
		Str("side", string(side)).
		Int("option", idx).
		Stringer("verdict", a.Verdict).
		Int("points", a.Points).
		Msg("answer selected")

	e.checkBothSelectedLocked()
	return true
}

func (e *Engine) checkBothSelectedLocked() {
	r := e.state.Round
	switch {
	case r.BothSelected():
		e.cancelTimerLocked(slotCountdown)
		e.cancelTimerLocked(slotOpponent)
		e.commitLocked(SetTimerRunning{Running: false})
		e.armTimerLocked(slotFeedback, e.cfg.FeedbackDelay, e.onFeedbackLocked)
	case r.Player.Selected():
		e.scheduleOpponentLocked()
	}
}

// scheduleOpponentLocked arms the opponent's answer unless it already answered or is
// already armed for this round. The profile in effect now decides both the delay and
// the pick.
func (e *Engine) scheduleOpponentLocked() {
	if e.state.Phase != PhaseQuestion || e.state.Round.Opponent.Selected() || e.armed(slotOpponent) {
		return
	}
	profile := e.state.Opponent
	e.armTimerLocked(slotOpponent, e.strategy.Delay(profile), func() {
		e.onOpponentLocked(profile)
	})
}

func (e *Engine) onOpponentLocked(profile OpponentProfile) {
	if e.state.Phase != PhaseQuestion || e.state.Round.Opponent.Selected() {
		return
	}
	idx := e.strategy.Choose(e.state.Round.Question, profile)
	e.selectLocked(SideOpponent, idx)
}

func (e *Engine) onFeedbackLocked() {
	if e.state.Phase != PhaseQuestion {
		return
	}
	e.resolveLocked(ResolutionAnswered)
}

func (e *Engine) resolveLocked(res Resolution) {
	e.cancelTimerLocked(slotCountdown)
	e.cancelTimerLocked(slotOpponent)
	e.cancelTimerLocked(slotFeedback)
	e.commitLocked(Resolve{Resolution: res})
	e.armTimerLocked(slotAdvance, e.cfg.AdvanceDelay, e.onAdvanceLocked)
}

func (e *Engine) onAdvanceLocked() {
	if e.state.Phase != PhaseResult {
		return
	}
	if e.state.CurrentRound < e.state.TotalRounds {
		e.startRoundLocked(e.state.CurrentRound + 1)
		return
	}
	e.cancelAllTimersLocked()
	e.commitLocked(End{})
	e.log.Info().
		Str("session_id", e.state.SessionID.String()).
		Int("player_score", e.state.PlayerScore).
		Int("opponent_score", e.state.OpponentScore).
		Str("winner", string(e.state.Winner)).
		Msg("game ended")
}

// ConfigureOpponent updates the opponent profile used by later scheduling. A timer that
// is already armed keeps the delay and accuracy it was armed with. It reports false when the speed range was rejected.
func (e *Engine) ConfigureOpponent(c OpponentConfig) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	profile, ok := c.merge(e.state.Opponent)
	if !ok {
		e.log.Debug().Interface("speed_ms_range", c.SpeedMsRange).Msg("ignoring invalid opponent speed range")
	}
	e.commitLocked(SetOpponent{Profile: profile})
	e.mu.Unlock()
	e.drain()
	return ok
}

// Reset cancels every timer and returns to an empty ready state.
func (e *Engine) Reset() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.sessionSeq++
	e.cancelAllTimersLocked()
	e.pool = nil
	e.commitLocked(ResetState{})
	e.mu.Unlock()
	e.drain()
}

// Close cancels every timer and drops all subscribers. Later calls are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.sessionSeq++
	e.cancelAllTimersLocked()
	e.pending = nil
	e.mu.Unlock()
	e.bus.clear()
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.clone()
}

// Get returns one field of the current state, or nil for an unknown field.
func (e *Engine) Get(f Field) any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Get(f)
}

// History returns a copy of the archived rounds.
func (e *Engine) History() []RoundResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RoundResult(nil), e.state.History...)
}

// Scores returns the running totals.
func (e *Engine) Scores() (player, opponent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PlayerScore, e.state.OpponentScore
}

// SubscribeAll registers a listener for every update. The returned func unsubscribes.
func (e *Engine) SubscribeAll(fn Listener) func() {
	if e.Closed() {
		return func() {}
	}
	return e.bus.subscribeAll(fn)
}

// Subscribe registers a listener for one field. The returned func unsubscribes.
func (e *Engine) Subscribe(f Field, fn FieldListener) func() {
	if e.Closed() {
		return func() {}
	}
	return e.bus.subscribe(f, fn)
}

// commitLocked applies c and queues a notification when anything changed.
// Caller holds e.mu.
func (e *Engine) commitLocked(c Change) {
	prev := e.state
	next := Reduce(prev, c)
	changed := next.Changed(prev)
	if len(changed) == 0 {
		return
	}
	e.state = next
	e.pending = append(e.pending, notification{next: next, prev: prev, changed: changed})
}

// drain delivers queued notifications. Only one goroutine drains at a time; a listener
// that calls back into the engine has its updates picked up by the same loop.
func (e *Engine) drain() {
	e.mu.Lock()
	if e.dispatching {
		e.mu.Unlock()
		return
	}
	e.dispatching = true
	for len(e.pending) > 0 && !e.closed {
		n := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()
		e.bus.publish(n)
		e.mu.Lock()
	}
	e.dispatching = false
	e.mu.Unlock()
}
