package service

import (
	"time"

	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets how many pipeline workers consume the queue.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the ingestion queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the retry-suppression set.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithWindowCapacity sets the per-driver rolling window size.
func WithWindowCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.windowCapacity = capacity
		}
	}
}

// WithMinSamples sets how many samples a window needs before features are
// computed.
func WithMinSamples(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minSamples = n
		}
	}
}

// WithEmitInterval sets the minimum spacing between leaderboard broadcasts.
func WithEmitInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.emitInterval = d
		}
	}
}

// WithMaxLeaderboard sets the ranked list truncation size.
func WithMaxLeaderboard(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboard = n
		}
	}
}

// WithReplayDir sets where run records are persisted.
func WithReplayDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.replayDir = dir
		}
	}
}

// WithFlushEvery sets the telemetry append count between durable flushes.
func WithFlushEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.flushEvery = n
		}
	}
}

// WithDeliveryTimeout bounds a single subscriber delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// WithSendBuffer sets the per-subscriber outbound queue length.
func WithSendBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}
