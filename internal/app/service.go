// Package service wires the ingestion gateway: it validates inbound
// telemetry, drives the state store, feature windows, intent classifier,
// replay ledger and broadcast scheduler, and answers the query surface used
// by the HTTP API and the WebSocket endpoint.
package service

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/adapters/broadcast"
	samplequeue "github.com/okian/pitwall/internal/adapters/mq/queue"
	workerpool "github.com/okian/pitwall/internal/adapters/mq/worker"
	"github.com/okian/pitwall/internal/adapters/replay"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/adapters/ws"
	"github.com/okian/pitwall/internal/domain/dedupe"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/intent"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rank"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Service owns the core components for one process lifetime. All shared
// state lives behind the components' own locks; the service itself only
// guards its lifecycle flags.
type Service struct {
	mu sync.RWMutex

	store      repository.Store
	extractor  *features.Extractor
	classifier *intent.Classifier
	ledger     *replay.Ledger
	registry   *ws.Registry
	scheduler  *broadcast.Scheduler
	queue      samplequeue.Queue
	pool       *workerpool.Pool
	deduper    dedupe.Deduper

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	windowCapacity  int
	minSamples      int
	emitInterval    time.Duration
	maxLeaderboard  int
	replayDir       string
	flushEvery      int
	deliveryTimeout time.Duration
	sendBuffer      int

	started bool

	log logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       100_000,
		dedupeSize:      50_000,
		windowCapacity:  40,
		minSamples:      5,
		emitInterval:    500 * time.Millisecond,
		maxLeaderboard:  rank.DefaultTopN,
		replayDir:       "replays",
		flushEvery:      200,
		deliveryTimeout: time.Second,
		sendBuffer:      64,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start wires and starts the components and opens an initial unnamed run so
// replay appends have a home before any explicit run start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.log == nil {
		s.log = logger.Get()
	}

	s.log.Info(ctx, "starting telemetry service...")

	s.store = repository.NewMemStore()
	s.extractor = features.NewExtractor(
		features.WithCapacity(s.windowCapacity),
		features.WithMinSamples(s.minSamples),
	)
	s.classifier = intent.NewClassifier()
	s.ledger = replay.NewLedger(
		replay.WithDir(s.replayDir),
		replay.WithFlushEvery(s.flushEvery),
	)
	s.registry = ws.NewRegistry(
		ws.WithSendBuffer(s.sendBuffer),
		ws.WithDeliveryTimeout(s.deliveryTimeout),
	)
	s.scheduler = broadcast.NewScheduler(
		s.emitLeaderboard,
		broadcast.WithInterval(s.emitInterval),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = samplequeue.NewInMemoryQueue(
		samplequeue.WithCapacity(s.queueSize),
	)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.pool.Start(ctx)

	if _, err := s.ledger.StartRun(ctx, "", map[string]any{}, false); err != nil {
		// The run is current in memory even when the skeleton write fails.
		s.log.Warn(ctx, "initial run skeleton not persisted", logger.Error(err))
	}

	s.started = true
	s.log.Info(ctx, "telemetry service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("emitInterval", s.emitInterval),
	)

	return nil
}

// Stop gracefully shuts down the service, flushing the replay ledger.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.log.Info(ctx, "stopping telemetry service...")

	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.ledger != nil {
		if err := s.ledger.Flush(ctx); err != nil {
			s.log.Error(ctx, "final replay flush failed", logger.Error(err))
		}
	}

	s.started = false
	s.log.Info(ctx, "telemetry service stopped")
}

// Registry exposes the subscriber registry to the transport layer.
func (s *Service) Registry() *ws.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Ingest validates an inbound payload and enqueues it for processing.
// origin carries the subscriber handle id when the sample arrived over a
// live connection, so the resulting driver:update can target it.
//
// Returns duplicate=true when a retried sample id was suppressed; the
// payload is acknowledged but not re-processed.
func (s *Service) Ingest(ctx context.Context, fields map[string]any, origin string) (bool, error) {
	driverID, ok := stringField(fields, model.FieldDriverID)
	if !ok {
		metrics.RecordSampleRejected()
		return false, fmt.Errorf("%w: missing %s", ErrValidation, model.FieldDriverID)
	}

	sample := model.Sample{
		DriverID:   driverID,
		Fields:     fields,
		ReceivedAt: time.Now(),
		Origin:     origin,
	}

	// Retry suppression only applies when the producer supplies an explicit
	// sample id; derived ids would collide for distinct samples in the same
	// millisecond.
	if id, ok := stringField(fields, "sample_id"); ok {
		sample.SampleID = id
		if s.deduper.SeenAndRecord(ctx, id) {
			metrics.RecordSampleDuplicate()
			return true, nil
		}
	}

	if !s.queue.Enqueue(ctx, sample) {
		if sample.SampleID != "" {
			s.deduper.Unrecord(ctx, sample.SampleID)
		}
		return false, ErrBackpressure
	}

	metrics.RecordSampleIngested()
	return false, nil
}

// Process drives one dequeued sample through the pipeline. Called by the
// worker pool. Replay durability errors are logged but never break the
// telemetry flow; in-memory state remains the authority.
func (s *Service) Process(ctx context.Context, sample model.Sample) error {
	snap, err := s.store.Merge(ctx, sample.DriverID, sample.Fields)
	if err != nil {
		return fmt.Errorf("merge driver state: %w", err)
	}

	s.extractor.Push(ctx, sample)
	feats := s.extractor.Features(ctx, sample.DriverID)
	pred := s.classifier.Predict(ctx, sample.DriverID, sample.TimestampMS(), feats)
	metrics.RecordIntentPrediction(pred.Intent)

	if err := s.ledger.Append(ctx, replay.KindTelemetry, sample); err != nil {
		s.log.Warn(ctx, "telemetry append failed", logger.Error(err))
	}
	if err := s.ledger.Append(ctx, replay.KindIntent, pred); err != nil {
		s.log.Warn(ctx, "intent append failed", logger.Error(err))
	}

	s.scheduler.Notify()

	if sample.Origin != "" {
		_ = s.registry.DeliverToOne(ctx, sample.Origin, ws.DriverUpdateMessage(snap))
	} else {
		_ = s.registry.DeliverToAll(ctx, ws.DriverUpdateMessage(snap))
	}
	_ = s.registry.DeliverToAll(ctx, ws.IntentMessage(pred))

	return nil
}

// Leaderboard recomputes the ranked top-N list from a consistent snapshot.
func (s *Service) Leaderboard(ctx context.Context) []rank.Entry {
	start := time.Now()
	entries := rank.Compute(s.store.SnapshotAll(ctx), s.maxLeaderboard)
	metrics.RecordRankDuration(float64(time.Since(start).Milliseconds()))
	return entries
}

// Driver returns one driver's merged snapshot.
func (s *Service) Driver(ctx context.Context, driverID string) (model.Snapshot, error) {
	snap, err := s.store.Get(ctx, driverID)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("driver %q: %w", driverID, err)
	}
	return snap, nil
}

// ResetDrivers clears all driver state and windows, records the reset in
// the replay event sequence, and pushes an empty board to all subscribers
// immediately, bypassing the debounce.
func (s *Service) ResetDrivers(ctx context.Context) error {
	s.store.Clear(ctx)
	s.extractor.Reset(ctx)

	if err := s.ledger.Append(ctx, replay.KindEvent, model.Event{
		TSMS: time.Now().UnixMilli(),
		Kind: "leaderboard_reset",
	}); err != nil {
		s.log.Warn(ctx, "reset event append failed", logger.Error(err))
	}

	return s.registry.DeliverToAll(ctx, ws.LeaderboardMessage(nil))
}

// StartRun starts a new replay run and announces it to connected viewers.
// Fails with a conflict when a run is active and force is unset.
func (s *Service) StartRun(ctx context.Context, name string, cfg map[string]any, force bool) (string, error) {
	runID, err := s.ledger.StartRun(ctx, name, cfg, force)
	if err != nil {
		return runID, err
	}

	_ = s.registry.DeliverToAll(ctx, ws.RunStartedMessage(runID, cfg))
	return runID, nil
}

// CurrentRun returns the active run id and configuration.
func (s *Service) CurrentRun(ctx context.Context) (string, map[string]any, error) {
	runID, err := s.ledger.CurrentRunID(ctx)
	if err != nil {
		return "", nil, err
	}
	cfg, err := s.ledger.CurrentConfig(ctx)
	if err != nil {
		return runID, nil, err
	}
	return runID, cfg, nil
}

// RunConfig returns a run's configuration, checking the in-memory current
// run before durable storage.
func (s *Service) RunConfig(ctx context.Context, runID string) (map[string]any, error) {
	return s.ledger.Config(ctx, runID)
}

// ListRuns returns all known run ids, newest first.
func (s *Service) ListRuns(ctx context.Context) ([]string, error) {
	return s.ledger.ListRuns(ctx)
}

// FlushReplay forces a durable write of the current replay record.
func (s *Service) FlushReplay(ctx context.Context) error {
	return s.ledger.Flush(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}

	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["drivers"] = s.store.Count(ctx)
		stats["subscribers"] = s.registry.Len()
		if runID, err := s.ledger.CurrentRunID(ctx); err == nil {
			stats["runId"] = runID
		}
		metrics.UpdateQueueSize(s.queue.Len(ctx))
		metrics.UpdateDriversTracked(s.store.Count(ctx))
	}

	return stats
}

// emitLeaderboard is the scheduler's deferred action: recompute at the
// deadline and fan out. With zero subscribers the computation still runs
// and delivery is a no-op.
func (s *Service) emitLeaderboard(ctx context.Context) error {
	return s.registry.DeliverToAll(ctx, ws.LeaderboardMessage(s.Leaderboard(ctx)))
}

// stringField extracts an identity-ish field as a non-blank string.
func stringField(fields map[string]any, name string) (string, bool) {
	v, ok := fields[name]
	if !ok {
		return "", false
	}
	var out string
	switch t := v.(type) {
	case string:
		out = t
	case float64:
		out = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		out = strconv.Itoa(t)
	default:
		return "", false
	}
	out = strings.TrimSpace(out)
	return out, out != ""
}
