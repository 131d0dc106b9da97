// Package ws exposes the live subscriber boundary: a registry of delivery
// handles and the WebSocket endpoint that feeds them.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Default registry configuration constants.
const (
	defaultSendBuffer      = 64
	defaultDeliveryTimeout = time.Second
)

// Handle is a live delivery channel to one connected viewer. Messages queue
// on a buffered channel, preserving per-subscriber FIFO order; the write
// pump drains it onto the socket.
type Handle struct {
	id     string
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

// ID returns the handle's identity for the connection lifetime.
func (h *Handle) ID() string {
	return h.id
}

// Outbound returns the channel the write pump drains.
func (h *Handle) Outbound() <-chan []byte {
	return h.out
}

// Closed reports connection teardown to the write pump.
func (h *Handle) Closed() <-chan struct{} {
	return h.closed
}

// Close tears the handle down. Safe to call more than once.
func (h *Handle) Close() {
	h.once.Do(func() { close(h.closed) })
}

// send queues a message, bounded by timeout so one slow subscriber cannot
// stall delivery to the rest.
func (h *Handle) send(msg []byte, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case h.out <- msg:
		return nil
	case <-h.closed:
		return ErrHandleClosed
	case <-t.C:
		return fmt.Errorf("%w: %s", ErrSlowSubscriber, h.id)
	}
}

// Registry tracks currently connected subscribers. Membership mutations and
// deliveries may race freely; the set is guarded by a mutex held only for
// map access, never during channel sends.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle

	sendBuffer      int
	deliveryTimeout time.Duration
	log             logger.Logger
}

// NewRegistry creates a registry with configuration options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handles:         make(map[string]*Handle),
		sendBuffer:      defaultSendBuffer,
		deliveryTimeout: defaultDeliveryTimeout,
		log:             logger.Get().Named("ws"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewHandle creates and registers a fresh delivery handle.
func (r *Registry) NewHandle() *Handle {
	h := &Handle{
		id:     uuid.NewString(),
		out:    make(chan []byte, r.sendBuffer),
		closed: make(chan struct{}),
	}

	r.mu.Lock()
	r.handles[h.id] = h
	n := len(r.handles)
	r.mu.Unlock()

	metrics.UpdateSubscriberCount(n)
	return h
}

// Remove unregisters and closes a handle. Removing an unknown handle is a
// no-op.
func (r *Registry) Remove(h *Handle) {
	if h == nil {
		return
	}

	r.mu.Lock()
	delete(r.handles, h.id)
	n := len(r.handles)
	r.mu.Unlock()

	h.Close()
	metrics.UpdateSubscriberCount(n)
}

// Len returns the current subscriber count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// DeliverToAll sends a message to every registered handle. It iterates a
// snapshot copy of the membership; any handle whose delivery fails is
// removed before the call returns. Per-subscriber order is FIFO; ordering
// across subscribers is not guaranteed.
func (r *Registry) DeliverToAll(ctx context.Context, message any) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal broadcast: %w", err)
	}

	r.mu.RLock()
	snapshot := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		snapshot = append(snapshot, h)
	}
	r.mu.RUnlock()

	var failed []*Handle
	for _, h := range snapshot {
		if err := h.send(payload, r.deliveryTimeout); err != nil {
			r.log.Warn(ctx, "dropping subscriber after failed delivery",
				logger.String("handle", h.id),
				logger.Error(err),
			)
			metrics.RecordDeliveryFailure()
			failed = append(failed, h)
		}
	}

	for _, h := range failed {
		r.Remove(h)
	}
	return nil
}

// DeliverToOne sends a message to a single handle by id.
// Returns ErrHandleClosed when the handle is unknown; a failed delivery
// prunes the handle like DeliverToAll does.
func (r *Registry) DeliverToOne(ctx context.Context, handleID string, message any) error {
	r.mu.RLock()
	h, ok := r.handles[handleID]
	r.mu.RUnlock()
	if !ok {
		return ErrHandleClosed
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := h.send(payload, r.deliveryTimeout); err != nil {
		metrics.RecordDeliveryFailure()
		r.Remove(h)
		return err
	}
	return nil
}
