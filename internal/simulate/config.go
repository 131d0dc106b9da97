package simulate

import "time"

// Config holds configuration for one simulated session.
type Config struct {
	BaseURL   string        // Base URL of the service
	Drivers   int           // Number of simulated drivers
	Samples   int           // Samples per driver
	Workers   int           // Number of concurrent submitters
	Timeout   time.Duration // HTTP request timeout
	RunName   string        // Replay run name registered before submission
	LogFile   string        // Log file for session output
	Verbose   bool          // Enable verbose logging
	SampleIDs bool          // Attach explicit sample ids to exercise retry suppression
}

// Sample is one telemetry payload submitted to the ingest endpoint.
type Sample struct {
	DriverID      string  `json:"driver_id"`
	SampleID      string  `json:"sample_id,omitempty"`
	TimestampMS   int64   `json:"timestamp_ms"`
	SpeedMPS      float64 `json:"speed_mps"`
	ThrottlePct   float64 `json:"throttle_pct"`
	BrakePct      float64 `json:"brake_pct"`
	TyreTemp      float64 `json:"tyre_temp"`
	LapProgress   float64 `json:"lap_progress"`
	CompletedLaps int     `json:"completed_laps"`
	Position      int     `json:"position"`
	TotalTime     float64 `json:"total_time"`
	BestLap       float64 `json:"best_lap"`
}

// Entry mirrors a served leaderboard row; only the fields the summary needs.
type Entry struct {
	Rank     int    `json:"rank"`
	DriverID string `json:"driver_id"`
}

// AckResponse represents the response from sample submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds session statistics.
type Stats struct {
	SamplesGenerated   int
	SamplesSubmitted   int
	SamplesSuccessful  int
	SamplesDuplicate   int
	SamplesThrottled   int
	SamplesFailed      int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
