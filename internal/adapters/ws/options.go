package ws

import (
	"time"

	"github.com/okian/pitwall/pkg/logger"
)

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithSendBuffer sets the per-subscriber outbound queue length.
func WithSendBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.sendBuffer = n
		}
	}
}

// WithDeliveryTimeout bounds a single subscriber delivery.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.deliveryTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the registry.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// HandlerOption applies a configuration option to the Handler.
type HandlerOption func(*Handler)

// WithWriteTimeout bounds a single socket write.
func WithWriteTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithPingInterval sets the keepalive ping cadence.
func WithPingInterval(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithHandlerLogger sets a custom logger for the handler.
func WithHandlerLogger(log logger.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}
