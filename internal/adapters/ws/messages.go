package ws

import (
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rank"
)

// Outbound message types.
const (
	TypeLeaderboardUpdate = "leaderboard:update"
	TypeDriverUpdate      = "driver:update"
	TypeIntent            = "intent"
	TypeRunStarted        = "sim:start"
	TypeError             = "error"
)

// Inbound viewer control message types.
const (
	TypeTelemetryUpdate      = "telemetry:update"
	TypeLeaderboardSubscribe = "leaderboard:subscribe"
	TypeLeaderboardReset     = "leaderboard:reset"
)

// Envelope is the inbound viewer control frame.
type Envelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type leaderboardMessage struct {
	Type        string       `json:"type"`
	Leaderboard []rank.Entry `json:"leaderboard"`
}

type driverUpdateMessage struct {
	Type     string         `json:"type"`
	DriverID string         `json:"driver_id"`
	State    model.Snapshot `json:"state"`
}

type intentMessage struct {
	Type string `json:"type"`
	model.Prediction
}

type runStartedMessage struct {
	Type   string         `json:"type"`
	RunID  string         `json:"run_id"`
	Config map[string]any `json:"config"`
}

type errorMessage struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// LeaderboardMessage carries the ranked top-N list.
func LeaderboardMessage(entries []rank.Entry) any {
	if entries == nil {
		entries = []rank.Entry{}
	}
	return leaderboardMessage{Type: TypeLeaderboardUpdate, Leaderboard: entries}
}

// DriverUpdateMessage carries one driver's merged state.
func DriverUpdateMessage(snap model.Snapshot) any {
	return driverUpdateMessage{Type: TypeDriverUpdate, DriverID: snap.DriverID, State: snap}
}

// IntentMessage carries a prediction.
func IntentMessage(p model.Prediction) any {
	return intentMessage{Type: TypeIntent, Prediction: p}
}

// RunStartedMessage announces a new run to connected viewers.
func RunStartedMessage(runID string, cfg map[string]any) any {
	return runStartedMessage{Type: TypeRunStarted, RunID: runID, Config: cfg}
}

// ErrorMessage reports a per-connection failure, e.g. a rejected sample.
func ErrorMessage(msg string) any {
	return errorMessage{Type: TypeError, Msg: msg}
}
