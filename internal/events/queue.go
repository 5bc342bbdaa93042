package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultQueueSize is the number of events QueuedPublisher holds while the
// bus is slow.
const DefaultQueueSize = 1024

// ErrQueueFull is returned by QueuedPublisher.Publish when an event had to
// be dropped.
var ErrQueueFull = errors.New("event queue full")

type queuedEvent struct {
	ctx   context.Context
	topic string
	event any
}

// QueuedPublisher hands events to a single worker that publishes them to
// the wrapped publisher in order. Publish never waits on the bus; when the
// queue is full the event is dropped and counted.
type QueuedPublisher struct {
	inner   Publisher
	logger  *slog.Logger
	queue   chan queuedEvent
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed against sends on a closed queue
	closed bool
	done   chan struct{}
}

// NewQueuedPublisher starts the worker for inner. A size <= 0 means
// DefaultQueueSize.
func NewQueuedPublisher(inner Publisher, size int, logger *slog.Logger) *QueuedPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &QueuedPublisher{
		inner:  inner,
		logger: logger,
		queue:  make(chan queuedEvent, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *QueuedPublisher) run() {
	defer close(q.done)
	for e := range q.queue {
		if err := q.inner.Publish(e.ctx, e.topic, e.event); err != nil {
			q.logger.Warn("failed to publish event", "topic", e.topic, "err", err)
		}
	}
}

// Publish enqueues the event. The request context's values are kept but
// its cancellation is not, so events outlive the request that caused them.
func (q *QueuedPublisher) Publish(ctx context.Context, topic string, event any) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errors.New("event queue closed")
	}
	select {
	case q.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), topic: topic, event: event}:
		return nil
	default:
		if q.dropped.Add(1) == 1 {
			q.logger.Warn("event bus is behind, dropping events", "queue_size", cap(q.queue))
		}
		return ErrQueueFull
	}
}

// Dropped returns how many events were dropped because the queue was full.
func (q *QueuedPublisher) Dropped() uint64 { return q.dropped.Load() }

// Close stops accepting events, gives the worker up to 5s to flush what is
// queued, then closes the wrapped publisher.
func (q *QueuedPublisher) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-time.After(5 * time.Second):
		q.logger.Warn("event queue not flushed before shutdown", "pending", len(q.queue))
	}
	if n := q.Dropped(); n > 0 {
		q.logger.Warn("events dropped while the bus was behind", "dropped", n)
	}
	return q.inner.Close()
}
