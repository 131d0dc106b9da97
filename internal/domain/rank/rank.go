// Package rank derives the ordered leaderboard from driver snapshots.
package rank

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/okian/pitwall/internal/domain/model"
)

// Default ranking constants.
const (
	// DefaultTopN caps the emitted leaderboard length.
	DefaultTopN = 20

	// missingPosition sorts drivers without a reported position last.
	// The value is a sentinel with no domain meaning beyond "missing sorts last".
	missingPosition = 9999
)

// Entry is one ranked leaderboard row: the merged driver state annotated
// with its 1-based rank.
type Entry struct {
	Rank     int
	Snapshot model.Snapshot
}

// MarshalJSON flattens the snapshot fields with the rank annotation, the
// shape viewers receive in leaderboard:update messages.
func (e Entry) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(e.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	out["rank"] = e.Rank
	b, err = json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	return b, nil
}

// sortKey is the lexicographic ranking tuple. Missing fields default to
// "worst": position to a large sentinel, times to +Inf.
type sortKey struct {
	negLaps   float64
	position  float64
	totalTime float64
	bestLap   float64
}

func keyOf(s model.Snapshot) sortKey {
	k := sortKey{
		position:  missingPosition,
		totalTime: math.Inf(1),
		bestLap:   math.Inf(1),
	}
	if v, ok := s.Float(model.FieldCompletedLaps); ok {
		k.negLaps = -v
	}
	if v, ok := s.Float(model.FieldPosition); ok {
		k.position = v
	}
	if v, ok := s.Float(model.FieldTotalTime); ok {
		k.totalTime = v
	}
	if v, ok := s.Float(model.FieldBestLap); ok {
		k.bestLap = v
	}
	return k
}

func (a sortKey) less(b sortKey) bool {
	switch {
	case a.negLaps != b.negLaps:
		return a.negLaps < b.negLaps
	case a.position != b.position:
		return a.position < b.position
	case a.totalTime != b.totalTime:
		return a.totalTime < b.totalTime
	default:
		return a.bestLap < b.bestLap
	}
}

// Compute sorts the snapshots, truncates to topN and annotates 1-based
// ranks. It is a pure function: deterministic for identical input, and
// stable, so ties keep their encounter order.
func Compute(snapshots []model.Snapshot, topN int) []Entry {
	if topN < 1 {
		topN = DefaultTopN
	}

	sorted := make([]model.Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return keyOf(sorted[i]).less(keyOf(sorted[j]))
	})

	if len(sorted) > topN {
		sorted = sorted[:topN]
	}

	entries := make([]Entry, len(sorted))
	for i, s := range sorted {
		entries[i] = Entry{Rank: i + 1, Snapshot: s}
	}
	return entries
}
