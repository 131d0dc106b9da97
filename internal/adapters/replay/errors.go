package replay

import "errors"

// Sentinel kinds for replay ledger errors.
var (
	// ErrRunActive reports a conflicting start while a run is current.
	ErrRunActive = errors.New("run already active")

	// ErrNoActiveRun reports operations that require a current run.
	ErrNoActiveRun = errors.New("no active run")

	// ErrNotFound reports a lookup of an unknown run id.
	ErrNotFound = errors.New("run config not found")

	// ErrBadEntry reports an append whose entry does not match its kind.
	ErrBadEntry = errors.New("bad replay entry")

	// ErrFlush wraps durability failures. In-memory state stays
	// authoritative until the next successful flush.
	ErrFlush = errors.New("replay flush failed")
)
