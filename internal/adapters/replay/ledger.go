// Package replay owns run identity and the append-only replay record.
//
// One run is current at any time. Its record accumulates three append-only
// sequences (telemetry, intent predictions, events) in memory, with
// amortized durable flushes to structured JSON files keyed by run id. The
// in-memory record stays authoritative between flushes.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// Append kinds.
const (
	KindTelemetry = "telemetry"
	KindIntent    = "intent"
	KindEvent     = "event"
)

// Default ledger configuration constants.
const (
	defaultDir        = "replays"
	defaultFlushEvery = 200

	runIDTimeFormat = "20060102T150405Z"
	maxRunNameLen   = 40
	configSuffix    = "_config.json"
)

// telemetryEntry is one raw sample as persisted in the replay record.
type telemetryEntry struct {
	TS       int64          `json:"ts"`
	DriverID string         `json:"driver_id"`
	Payload  map[string]any `json:"payload"`
}

// Record is the replay document for one run.
type Record struct {
	RunID     string             `json:"run_id"`
	Config    map[string]any     `json:"config"`
	StartedAt string             `json:"started_at"`
	Telemetry []telemetryEntry   `json:"telemetry"`
	Intents   []model.Prediction `json:"intent_predictions"`
	Events    []model.Event      `json:"events"`
}

// Ledger manages the current run and its replay record. Its mutex is
// independent of the driver state store's lock so replay appends never
// contend with ranking reads.
type Ledger struct {
	mu         sync.Mutex
	dir        string
	flushEvery int
	clock      func() time.Time

	current *Record
}

// NewLedger creates a ledger with configuration options. The replay
// directory is created on first use.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		dir:        defaultDir,
		flushEvery: defaultFlushEvery,
		clock:      time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// StartRun derives a run id, persists the configuration record and a replay
// skeleton, and makes the new run current.
//
// When a run is already active it fails with ErrRunActive unless force is
// set, in which case the outgoing record is durably flushed first; a flush
// failure aborts the replacement.
func (l *Ledger) StartRun(ctx context.Context, name string, cfg map[string]any, force bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil {
		if !force {
			return "", fmt.Errorf("%w: %s", ErrRunActive, l.current.RunID)
		}
		if err := l.flushLocked(ctx); err != nil {
			return "", err
		}
	}

	now := l.clock().UTC()
	runID := makeRunID(name, now)

	// Detach from the caller's map before annotating it.
	cfg = copyConfig(cfg)
	cfg["_meta"] = map[string]any{
		"created_at": now.Format(time.RFC3339),
		"run_id":     runID,
	}

	l.current = &Record{
		RunID:     runID,
		Config:    cfg,
		StartedAt: now.Format(time.RFC3339),
		Telemetry: []telemetryEntry{},
		Intents:   []model.Prediction{},
		Events:    []model.Event{},
	}

	// The new run is current from here on; disk failures surface to the
	// caller but the in-memory record stays authoritative.
	if err := l.writeJSON(l.configPath(runID), cfg); err != nil {
		return runID, err
	}
	if err := l.flushLocked(ctx); err != nil {
		return runID, err
	}

	return runID, nil
}

// Append adds an entry to the matching sequence of the current record.
// Telemetry appends trigger an amortized durable flush every Nth call; the
// caller is never blocked on disk for the other kinds.
func (l *Ledger) Append(ctx context.Context, kind string, entry any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return ErrNoActiveRun
	}

	switch kind {
	case KindTelemetry:
		s, ok := entry.(model.Sample)
		if !ok {
			return fmt.Errorf("%w: telemetry entry must be a sample", ErrBadEntry)
		}
		l.current.Telemetry = append(l.current.Telemetry, telemetryEntry{
			TS:       s.TimestampMS(),
			DriverID: s.DriverID,
			Payload:  s.Fields,
		})
		metrics.RecordLedgerAppend(kind)
		if len(l.current.Telemetry)%l.flushEvery == 0 {
			return l.flushLocked(ctx)
		}
		return nil
	case KindIntent:
		p, ok := entry.(model.Prediction)
		if !ok {
			return fmt.Errorf("%w: intent entry must be a prediction", ErrBadEntry)
		}
		l.current.Intents = append(l.current.Intents, p)
		metrics.RecordLedgerAppend(kind)
		return nil
	case KindEvent:
		e, ok := entry.(model.Event)
		if !ok {
			return fmt.Errorf("%w: event entry must be an event", ErrBadEntry)
		}
		l.current.Events = append(l.current.Events, e)
		metrics.RecordLedgerAppend(kind)
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrBadEntry, kind)
	}
}

// Flush forces an immediate durable write of the current record.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked(ctx)
}

// CurrentRunID returns the active run id, or ErrNoActiveRun.
func (l *Ledger) CurrentRunID(_ context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return "", ErrNoActiveRun
	}
	return l.current.RunID, nil
}

// CurrentConfig returns the active record's configuration, or ErrNoActiveRun.
func (l *Ledger) CurrentConfig(_ context.Context) (map[string]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return nil, ErrNoActiveRun
	}
	return copyConfig(l.current.Config), nil
}

// Config returns a run's configuration: the in-memory current run first,
// then the durable record, else ErrNotFound.
func (l *Ledger) Config(_ context.Context, runID string) (map[string]any, error) {
	l.mu.Lock()
	if l.current != nil && l.current.RunID == runID {
		cfg := copyConfig(l.current.Config)
		l.mu.Unlock()
		return cfg, nil
	}
	dir := l.dir
	l.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(dir, runID+configSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("%w: %w", ErrFlush, err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFlush, err)
	}
	return cfg, nil
}

// ListRuns returns all run ids with a persisted configuration record,
// newest first.
func (l *Ledger) ListRuns(_ context.Context) ([]string, error) {
	l.mu.Lock()
	dir := l.dir
	l.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrFlush, err)
	}

	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if name := e.Name(); strings.HasSuffix(name, configSuffix) {
			runs = append(runs, strings.TrimSuffix(name, configSuffix))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))
	return runs, nil
}

// flushLocked writes the current record to disk. Must hold l.mu.
func (l *Ledger) flushLocked(_ context.Context) error {
	if l.current == nil {
		return nil
	}
	if err := l.writeJSON(l.replayPath(l.current.RunID), l.current); err != nil {
		metrics.RecordLedgerFlushError()
		return err
	}
	metrics.RecordLedgerFlush()
	return nil
}

func (l *Ledger) writeJSON(path string, v any) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	return nil
}

func (l *Ledger) configPath(runID string) string {
	return filepath.Join(l.dir, runID+configSuffix)
}

func (l *Ledger) replayPath(runID string) string {
	return filepath.Join(l.dir, runID+".json")
}

// copyConfig detaches a configuration map so callers can't alias the
// ledger's record. A nil map copies to an empty one.
func copyConfig(cfg map[string]any) map[string]any {
	out := make(map[string]any, len(cfg)+1)
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

// makeRunID builds a monotonic, filesystem-safe run id: a sanitized name
// plus a UTC timestamp suffix, or a timestamp-only id when unnamed.
func makeRunID(name string, now time.Time) string {
	ts := now.Format(runIDTimeFormat)
	if name == "" {
		return "run_" + ts
	}

	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= maxRunNameLen {
			break
		}
	}
	return b.String() + "_" + ts
}
