package relay

import (
	"context"
	"sync"
	"time"

	"github.com/mcdev12/quizbattle/go/internal/battle/events"
)

// MetricsCollector defines the interface for collecting relay metrics
type MetricsCollector interface {
	RecordEventPublished(eventType events.EventType, success bool, duration time.Duration)
	RecordPublishAttempt(eventType events.EventType, attempt int, success bool)
	RecordEventDropped(eventType events.EventType)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventPublished(events.EventType, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordPublishAttempt(events.EventType, int, bool)           {}
func (NoOpMetricsCollector) RecordEventDropped(events.EventType)                        {}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, env Envelope) error {
	start := time.Now()
	err := p.publisher.Publish(ctx, env)
	p.metrics.RecordEventPublished(env.EventType, err == nil, time.Since(start))
	return err
}

// Counters is an in-memory MetricsCollector backing the health endpoint
type Counters struct {
	mu        sync.Mutex
	published map[events.EventType]uint64
	failed    map[events.EventType]uint64
	dropped   map[events.EventType]uint64
	retries   uint64
	last      time.Time
}

// CounterSnapshot is a point-in-time copy of Counters
type CounterSnapshot struct {
	Published     uint64    `json:"published"`
	Failed        uint64    `json:"failed"`
	Dropped       uint64    `json:"dropped"`
	Retries       uint64    `json:"retries"`
	LastPublished time.Time `json:"last_published,omitempty"`
}

func NewCounters() *Counters {
	return &Counters{
		published: make(map[events.EventType]uint64),
		failed:    make(map[events.EventType]uint64),
		dropped:   make(map[events.EventType]uint64),
	}
}

func (c *Counters) RecordEventPublished(eventType events.EventType, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.published[eventType]++
		c.last = time.Now()
		return
	}
	c.failed[eventType]++
}

func (c *Counters) RecordPublishAttempt(_ events.EventType, attempt int, _ bool) {
	if attempt <= 1 {
		return
	}
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

func (c *Counters) RecordEventDropped(eventType events.EventType) {
	c.mu.Lock()
	c.dropped[eventType]++
	c.mu.Unlock()
}

// Published returns the number of successful publishes of one event type
func (c *Counters) Published(eventType events.EventType) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published[eventType]
}

func (c *Counters) Snapshot() CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := CounterSnapshot{Retries: c.retries, LastPublished: c.last}
	for _, n := range c.published {
		s.Published += n
	}
	for _, n := range c.failed {
		s.Failed += n
	}
	for _, n := range c.dropped {
		s.Dropped += n
	}
	return s
}
