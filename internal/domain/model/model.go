// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known telemetry field names. Producers send free-form fields; these
// are the ones the pipeline and ranker read when present.
const (
	FieldDriverID    = "driver_id"
	FieldTimestampMS = "timestamp_ms"

	FieldSpeed       = "speed_mps"
	FieldThrottle    = "throttle_pct"
	FieldBrake       = "brake_pct"
	FieldTyreTemp    = "tyre_temp"
	FieldLapProgress = "lap_progress"

	FieldCompletedLaps = "completed_laps"
	FieldPosition      = "position"
	FieldTotalTime     = "total_time"
	FieldBestLap       = "best_lap"
)

// Sample is a validated telemetry sample from one producer. Fields carries
// the payload verbatim; ReceivedAt is server-assigned so producers never
// need synchronized clocks.
type Sample struct {
	DriverID   string
	SampleID   string // idempotency key, derived when the producer omits one
	Fields     map[string]any
	ReceivedAt time.Time
	Origin     string // subscriber handle id when ingested over a live connection
}

// Float reads a numeric field from the sample payload.
func (s Sample) Float(name string) (float64, bool) {
	return floatField(s.Fields, name)
}

// TimestampMS returns the producer timestamp when present, else the server
// receive time.
func (s Sample) TimestampMS() int64 {
	if v, ok := s.Float(FieldTimestampMS); ok {
		return int64(v)
	}
	return s.ReceivedAt.UnixMilli()
}

// Snapshot is the merged per-driver state held by the store.
type Snapshot struct {
	DriverID   string
	Fields     map[string]any
	LastUpdate time.Time
}

// Float reads a numeric field from the merged state.
func (s Snapshot) Float(name string) (float64, bool) {
	return floatField(s.Fields, name)
}

// MarshalJSON flattens the merged fields with the driver identity and the
// server update timestamp, matching the shape pushed to viewers.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+2)
	for k, v := range s.Fields {
		out[k] = v
	}
	out[FieldDriverID] = s.DriverID
	out["last_update_ts"] = float64(s.LastUpdate.UnixMilli()) / 1000.0
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return b, nil
}

// FeatureSet holds rolling-window summary statistics for one driver.
// A zero Samples count marks the cold-start "no features yet" state.
type FeatureSet struct {
	SpeedMean    float64 `json:"speed_mean"`
	SpeedStd     float64 `json:"speed_std"`
	DeltaSpeed   float64 `json:"delta_speed"`
	ThrottleMean float64 `json:"throttle_mean"`
	BrakeMean    float64 `json:"brake_mean"`
	TyreTempMean float64 `json:"tyre_temp_mean"`
	LapProgSlope float64 `json:"lapprog_slope"`
	Samples      int     `json:"samples"`
}

// Empty reports whether the window had too few samples to compute features.
func (f FeatureSet) Empty() bool {
	return f.Samples == 0
}

// Prediction is the classifier output for one ingested sample.
type Prediction struct {
	DriverID      string             `json:"driver_id"`
	TSMS          int64              `json:"ts_ms"`
	Intent        string             `json:"intent"`
	Probabilities map[string]float64 `json:"probabilities"`
	Confidence    float64            `json:"confidence"`
	Features      FeatureSet         `json:"features"`
	ModelVersion  string             `json:"model_version"`
}

// Event is a discrete run event appended to the replay record.
type Event struct {
	TSMS int64          `json:"ts_ms"`
	Kind string         `json:"kind"`
	Data map[string]any `json:"data,omitempty"`
}

// floatField converts the loosely typed payload values that arrive via JSON
// decoding or in-process producers.
func floatField(fields map[string]any, name string) (float64, bool) {
	v, ok := fields[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
