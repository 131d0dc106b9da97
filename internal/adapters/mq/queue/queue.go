// Package queue defines the contract for enqueuing and consuming validated
// telemetry samples.
package queue

import (
	"context"
	"sync"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// defaultCapacity bounds the in-memory queue when no option is given.
const defaultCapacity = 100_000

// Sample is the payload type flowing through the queue.
type Sample = model.Sample

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a sample to the queue.
	// Returns false if the queue is full (backpressure) or closed.
	Enqueue(ctx context.Context, s Sample) bool

	// Dequeue returns a channel that receives samples as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Sample

	// Len returns the current number of queued samples.
	Len(ctx context.Context) int

	// Close shuts down the queue. After closing, no new samples can be
	// enqueued and the dequeue channel drains then closes.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	samples  chan Sample
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.samples = make(chan Sample, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a sample to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s Sample) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		return false
	}

	select {
	case q.samples <- s:
		metrics.UpdateQueueSize(len(q.samples))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		return false
	default:
		// queue full: report backpressure to the caller
		metrics.RecordQueueEnqueueError()
		return false
	}
}

// Dequeue returns a channel receiving samples until the queue closes or ctx
// is canceled. The bridge goroutine selects on ctx on both sides so a
// departed consumer never strands it holding a sample.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Sample {
	out := make(chan Sample)
	go func() {
		defer close(out)
		for {
			select {
			case s, ok := <-q.samples:
				if !ok {
					return
				}
				select {
				case out <- s:
					metrics.UpdateQueueSize(len(q.samples))
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued samples.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.samples)
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.samples)
	q.closed = true
	return nil
}
