// Package broadcast debounces leaderboard emission.
//
// The scheduler is a two-state machine (idle/pending). Notify while pending
// is a guaranteed no-op, so under arbitrarily fast notification rates at
// most one deferred emit is outstanding and at most one broadcast happens
// per interval. The emit callback runs at the deadline, so the state it
// reads is never older than the last notify.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// defaultInterval is the minimum time between emissions.
const defaultInterval = 500 * time.Millisecond

// EmitFunc recomputes and delivers the leaderboard. It runs on the
// scheduler's deferred task; errors are logged, never propagated.
type EmitFunc func(ctx context.Context) error

// Scheduler coalesces notifications into debounced emissions.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	pending  bool
	lastEmit time.Time

	emit  EmitFunc
	clock func() time.Time
	log   logger.Logger
}

// NewScheduler creates a scheduler with configuration options.
func NewScheduler(emit EmitFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: defaultInterval,
		emit:     emit,
		clock:    time.Now,
		log:      logger.Get().Named("broadcast"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Notify requests an emission. If one is already pending the call coalesces;
// otherwise a single deferred emit is armed after the remaining debounce
// wait. The idle->pending transition is the atomic decision point: two
// concurrent notifies can never arm two timers.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending {
		metrics.RecordBroadcastCoalesced()
		return
	}
	s.pending = true

	wait := s.interval - s.clock().Sub(s.lastEmit)
	if wait < 0 {
		wait = 0
	}
	time.AfterFunc(wait, s.fire)
}

// Pending reports whether an emission is currently armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// fire runs the deferred emission. Panics and errors are contained so the
// scheduler always returns to idle and future notifications keep working.
func (s *Scheduler) fire() {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error(ctx, "broadcast emit panicked", logger.Any("panic", r))
		}
		s.mu.Lock()
		s.lastEmit = s.clock()
		s.pending = false
		s.mu.Unlock()
	}()

	if err := s.emit(ctx); err != nil {
		s.log.Error(ctx, "broadcast emit failed", logger.Error(err))
		return
	}
	metrics.RecordBroadcastEmitted()
}
