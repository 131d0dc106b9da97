package features

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithCapacity sets the per-driver window capacity.
func WithCapacity(capacity int) Option {
	return func(e *Extractor) {
		if capacity > 0 {
			e.capacity = capacity
		}
	}
}

// WithMinSamples sets the minimum sample count before features are computed.
func WithMinSamples(minSamples int) Option {
	return func(e *Extractor) {
		if minSamples > 0 {
			e.minSamples = minSamples
		}
	}
}
