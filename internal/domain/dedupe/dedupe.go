// Package dedupe defines the interface for suppressing producer retries.
//
// Producers resend samples over flaky links; the deduper keeps a bounded set
// of recently seen sample ids so a retry never double-drives the pipeline.
package dedupe

import (
	"context"
	"sync"
)

// defaultMaxSize bounds the seen-set when no option is given.
const defaultMaxSize = 50_000

// Deduper records seen sample IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing a retry. Used when
	// a sample was marked seen but failed to enqueue (backpressure).
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of recorded ids.
	Size() int64
}

// inMemoryDeduper implements Deduper with a map plus a FIFO ring of ids:
// once full, recording a new id evicts the oldest one.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // ring buffer of ids in record order
	head    int      // index of the oldest live id
	maxSize int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{}, d.maxSize)
	d.order = make([]string, 0, d.maxSize)

	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	// The ring keeps a stale entry; evictOldest skips ids no longer in the map.
	delete(d.seen, id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}

// evictOldest drops the oldest recorded id still present in the map and
// compacts the ring when the dead prefix grows large.
func (d *inMemoryDeduper) evictOldest() {
	for d.head < len(d.order) {
		id := d.order[d.head]
		d.head++
		if _, ok := d.seen[id]; ok {
			delete(d.seen, id)
			break
		}
	}
	if d.head > len(d.order)/2 && d.head > d.maxSize {
		d.order = append([]string(nil), d.order[d.head:]...)
		d.head = 0
	}
}
