package features

import (
	"context"
	"sync"

	"github.com/okian/pitwall/internal/domain/model"
)

// Extractor owns one rolling window per driver. Windows are created lazily
// on first push and cleared only by Reset.
type Extractor struct {
	mu         sync.Mutex
	windows    map[string]*Window
	capacity   int
	minSamples int
}

// NewExtractor creates an extractor with configuration options.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		windows:    make(map[string]*Window),
		capacity:   defaultCapacity,
		minSamples: defaultMinSamples,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Push appends a sample to the driver's window, creating it when needed.
func (e *Extractor) Push(_ context.Context, s model.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.windows[s.DriverID]
	if !ok {
		w = NewWindow(e.capacity)
		e.windows[s.DriverID] = w
	}
	w.Push(s)
}

// Features returns the driver's current feature set, or the empty set when
// the window is missing or below the minimum sample count.
func (e *Extractor) Features(_ context.Context, driverID string) model.FeatureSet {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, ok := e.windows[driverID]
	if !ok || !w.Ready(e.minSamples) {
		return model.FeatureSet{}
	}
	return w.Features()
}

// Reset drops all driver windows.
func (e *Extractor) Reset(_ context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows = make(map[string]*Window)
}
