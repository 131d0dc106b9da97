package replay

import "time"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithDir sets the directory for replay and config records.
func WithDir(dir string) Option {
	return func(l *Ledger) {
		if dir != "" {
			l.dir = dir
		}
	}
}

// WithFlushEvery sets the telemetry append count between durable flushes.
func WithFlushEvery(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.flushEvery = n
		}
	}
}

// WithClock overrides the timestamp source used for run ids.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}
