package ws

import "errors"

// Sentinel kinds for subscriber delivery errors.
var (
	// ErrHandleClosed reports delivery to a disconnected or unknown handle.
	ErrHandleClosed = errors.New("subscriber handle closed")

	// ErrSlowSubscriber reports a delivery that timed out because the
	// subscriber's outbound queue stayed full.
	ErrSlowSubscriber = errors.New("subscriber too slow")
)
