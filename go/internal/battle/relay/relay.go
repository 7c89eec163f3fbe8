package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/quizbattle/go/internal/battle/engine"
	"github.com/mcdev12/quizbattle/go/internal/battle/events"
	"github.com/rs/zerolog/log"
)

type Config struct {
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	FlushTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BufferSize:   1024,
		MaxRetries:   3,
		RetryDelay:   200 * time.Millisecond,
		FlushTimeout: 5 * time.Second,
	}
}

// Relay derives domain events from engine updates and publishes them from a single
// worker goroutine. Envelopes are queued in commit order; when the queue is full new
// envelopes are dropped rather than blocking the engine.
type Relay struct {
	publisher Publisher
	metrics   MetricsCollector
	clock     clockwork.Clock
	config    Config
	queue     chan Envelope

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

type Option func(*Relay)

func WithMetrics(m MetricsCollector) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithClock(c clockwork.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

func New(publisher Publisher, cfg Config, opts ...Option) *Relay {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	r := &Relay{
		publisher: publisher,
		metrics:   NoOpMetricsCollector{},
		clock:     clockwork.NewRealClock(),
		config:    cfg,
		queue:     make(chan Envelope, cfg.BufferSize),
		stopChan:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.publisher = NewMetricPublisher(publisher, r.metrics)
	return r
}

// Attach subscribes the relay to one battle. It has the shape of a registry hook.
func (r *Relay) Attach(id uuid.UUID, e *engine.Engine) func() {
	return e.SubscribeAll(func(next, prev engine.State, _ []engine.Field) {
		for _, ev := range events.Derive(next, prev, r.clock.Now()) {
			r.enqueue(id, ev)
		}
	})
}

func (r *Relay) enqueue(id uuid.UUID, ev events.Event) {
	env, err := NewEnvelope(id, ev, r.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("battle_id", id.String()).Msg("failed to build event envelope")
		return
	}
	select {
	case r.queue <- env:
	default:
		r.metrics.RecordEventDropped(ev.Type)
		log.Warn().
			Str("battle_id", id.String()).
			Str("event_type", string(ev.Type)).
			Msg("relay queue full, dropping event")
	}
}

func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("relay already running")
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	log.Info().
		Int("buffer_size", r.config.BufferSize).
		Int("max_retries", r.config.MaxRetries).
		Msg("event relay started")
	return nil
}

// Stop ends the worker after flushing whatever is still queued.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return errors.New("relay not running")
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()

	log.Info().Msg("event relay stopped")
	return nil
}

// Pending returns the number of queued envelopes
func (r *Relay) Pending() int {
	return len(r.queue)
}

// Connected reports the bus connection state when the publisher exposes one
func (r *Relay) Connected() bool {
	type connChecker interface{ IsConnected() bool }
	if mp, ok := r.publisher.(*MetricPublisher); ok {
		if c, ok := mp.publisher.(connChecker); ok {
			return c.IsConnected()
		}
	}
	return true
}

func (r *Relay) run(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case <-r.stopChan:
			r.flush()
			return
		case env := <-r.queue:
			r.publish(ctx, env)
		}
	}
}

func (r *Relay) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.FlushTimeout)
	defer cancel()
	for {
		select {
		case env := <-r.queue:
			r.publish(ctx, env)
		default:
			return
		}
	}
}

func (r *Relay) publish(ctx context.Context, env Envelope) {
	if err := r.publishWithRetry(ctx, env); err != nil {
		log.Error().
			Err(err).
			Str("event_id", env.EventID.String()).
			Str("event_type", string(env.EventType)).
			Str("battle_id", env.BattleID.String()).
			Msg("failed to publish event")
	}
}

func (r *Relay) publishWithRetry(ctx context.Context, env Envelope) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.config.RetryDelay * time.Duration(attempt)):
			}
		}

		err := r.publisher.Publish(ctx, env)
		r.metrics.RecordPublishAttempt(env.EventType, attempt+1, err == nil)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("event_id", env.EventID.String()).
			Int("attempt", attempt+1).
			Msg("failed to publish event, retrying")
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}
