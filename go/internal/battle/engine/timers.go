package engine

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// slot names a pending timer. Each slot holds at most one handle.
type slot int

const (
	slotCountdown slot = iota
	slotOpponent
	slotEntrance
	slotFeedback
	slotAdvance
	slotCount
)

func (s slot) String() string {
	switch s {
	case slotCountdown:
		return "countdown"
	case slotOpponent:
		return "opponent"
	case slotEntrance:
		return "entrance"
	case slotFeedback:
		return "feedback"
	case slotAdvance:
		return "advance"
	default:
		return "unknown"
	}
}

// handle owns one armed timer or ticker. It is released exactly once, on cancel or
// on fire. A fire whose handle is no longer in its slot is stale and ignored.
type handle struct {
	stop   chan struct{}
	once   sync.Once
	timer  clockwork.Timer
	ticker clockwork.Ticker
}

func (h *handle) release() {
	h.once.Do(func() {
		close(h.stop)
		if h.timer != nil {
			stopAndDrainTimer(h.timer)
		}
		if h.ticker != nil {
			h.ticker.Stop()
		}
	})
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// armTimerLocked replaces whatever is in s with a one-shot timer that runs fn under
// the engine lock. Caller holds e.mu.
func (e *Engine) armTimerLocked(s slot, d time.Duration, fn func()) {
	e.cancelTimerLocked(s)
	h := &handle{stop: make(chan struct{}), timer: e.clock.NewTimer(d)}
	e.timers[s] = h

	go func() {
		select {
		case <-h.timer.Chan():
			e.fire(s, h, fn)
		case <-h.stop:
		}
	}()
	e.log.Debug().Str("slot", s.String()).Dur("delay", d).Msg("armed timer")
}

// armTickerLocked replaces whatever is in s with a ticker that runs fn under the
// engine lock on every tick. Caller holds e.mu.
func (e *Engine) armTickerLocked(s slot, d time.Duration, fn func()) {
	e.cancelTimerLocked(s)
	h := &handle{stop: make(chan struct{}), ticker: e.clock.NewTicker(d)}
	e.timers[s] = h

	go func() {
		for {
			select {
			case <-h.ticker.Chan():
				if !e.tick(s, h, fn) {
					return
				}
			case <-h.stop:
				return
			}
		}
	}()
}

func (e *Engine) fire(s slot, h *handle, fn func()) {
	e.mu.Lock()
	if e.timers[s] != h {
		e.mu.Unlock()
		return
	}
	e.timers[s] = nil
	h.release()
	fn()
	e.mu.Unlock()
	e.drain()
}

func (e *Engine) tick(s slot, h *handle, fn func()) bool {
	e.mu.Lock()
	if e.timers[s] != h {
		e.mu.Unlock()
		return false
	}
	fn()
	e.mu.Unlock()
	e.drain()
	return true
}

// cancelTimerLocked releases the handle in s, if any. Caller holds e.mu.
func (e *Engine) cancelTimerLocked(s slot) {
	if h := e.timers[s]; h != nil {
		h.release()
		e.timers[s] = nil
	}
}

func (e *Engine) cancelAllTimersLocked() {
	for s := slot(0); s < slotCount; s++ {
		e.cancelTimerLocked(s)
	}
}

func (e *Engine) armed(s slot) bool {
	return e.timers[s] != nil
}
