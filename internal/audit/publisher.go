// Package audit publishes lifecycle events to in-memory and Kafka sinks.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPublisherClosed is returned by Emit after Close.
var ErrPublisherClosed = errors.New("event publisher is closed")

// Publisher hands events to a Store. In async mode a single goroutine drains
// a bounded queue; Emit never blocks and drops events when the queue is full.
type Publisher struct {
	store   Store
	logger  *slog.Logger
	queue   chan Event
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues up to size events for background delivery.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.queue = make(chan Event, size)
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		p.done = make(chan struct{})
		go p.drain()
	}
	return p
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.queue {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("failed to publish event",
			"error", err,
			"action", event.Action,
			"tenant_id", event.TenantID,
			"subject", event.Subject,
		)
	}
}

// Emit stamps and publishes event. Synchronous publishers return the store
// error; async ones only fail once closed.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- event:
	default:
		n := p.dropped.Add(1)
		p.logger.WarnContext(ctx, "event queue full, event dropped",
			"action", event.Action,
			"tenant_id", event.TenantID,
			"dropped_total", n,
		)
	}
	return nil
}

// Dropped counts events discarded because the queue was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits until queued ones are delivered.
// It is safe to call more than once.
func (p *Publisher) Close() {
	if p.queue == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	<-p.done
}
