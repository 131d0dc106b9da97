package service

import "errors"

// Sentinel kinds for gateway errors.
var (
	// ErrValidation reports a malformed inbound sample. Stored state is
	// never touched by a rejected sample.
	ErrValidation = errors.New("invalid telemetry sample")

	// ErrBackpressure reports a full ingestion queue.
	ErrBackpressure = errors.New("ingestion backpressure")
)
