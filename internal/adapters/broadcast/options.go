package broadcast

import (
	"time"

	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithInterval sets the minimum time between emissions.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval >= 0 {
			s.interval = interval
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}
