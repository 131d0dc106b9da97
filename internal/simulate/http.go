package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pitwall/pkg/logger"
)

// HTTP status codes the submitter distinguishes.
const (
	statusOK              = 200
	statusAccepted        = 202
	statusTooManyRequests = 429
)

// HTTPClient wraps http.Client with a timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// submitSamples pushes the session through a concurrent submitter pool.
// Per-driver ordering is preserved by sharding drivers over workers, not by
// spraying samples round-robin.
func submitSamples(ctx context.Context, config *Config, samples []Sample, stats *Stats) error {
	logger.Get().Info(ctx, "submitting samples",
		logger.Int("count", len(samples)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/telemetry"

	var (
		successful int64
		duplicate  int64
		throttled  int64
		failed     int64
		submitted  int64
	)

	// Shard by driver so one worker owns all of a driver's samples in order.
	shards := make([][]Sample, config.Workers)
	shardIndex := make(map[string]int, config.Drivers)
	next := 0
	for _, s := range samples {
		idx, ok := shardIndex[s.DriverID]
		if !ok {
			idx = next % config.Workers
			shardIndex[s.DriverID] = idx
			next++
		}
		shards[idx] = append(shards[idx], s)
	}

	var wg sync.WaitGroup
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(shard []Sample) {
			defer wg.Done()
			for _, s := range shard {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddInt64(&submitted, 1)
				switch submitSingleSample(ctx, client, url, s) {
				case "success":
					atomic.AddInt64(&successful, 1)
				case "duplicate":
					atomic.AddInt64(&duplicate, 1)
				case "throttled":
					atomic.AddInt64(&throttled, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}(shard)
	}
	wg.Wait()

	stats.SamplesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.SamplesSuccessful = int(atomic.LoadInt64(&successful))
	stats.SamplesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.SamplesThrottled = int(atomic.LoadInt64(&throttled))
	stats.SamplesFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "sample submission completed",
		logger.Int("successful", stats.SamplesSuccessful),
		logger.Int("duplicate", stats.SamplesDuplicate),
		logger.Int("throttled", stats.SamplesThrottled),
		logger.Int("failed", stats.SamplesFailed))
	return nil
}

// submitSingleSample submits one sample and classifies the outcome.
func submitSingleSample(ctx context.Context, client *HTTPClient, url string, s Sample) string {
	resp, err := client.Post(ctx, url, s)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case statusAccepted:
		return "success"
	case statusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "success"
	case statusTooManyRequests:
		return "throttled"
	default:
		return "failed"
	}
}

// getLeaderboard fetches the served board once the session has drained.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Get(ctx, config.BaseURL+"/leaderboard")
	if err != nil {
		return nil, fmt.Errorf("leaderboard request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != statusOK {
		return nil, fmt.Errorf("leaderboard request returned status %d", resp.StatusCode)
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard: %w", err)
	}

	stats.LeaderboardEntries = len(entries)
	return entries, nil
}

// startRun registers a named replay run before submission so the session is
// recorded under a recognizable id.
func startRun(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)

	payload := map[string]any{
		"name": config.RunName,
		"config": map[string]any{
			"drivers":           config.Drivers,
			"samples":           config.Samples,
			"sample_spacing_ms": sampleSpacingMS,
		},
	}

	resp, err := client.Post(ctx, config.BaseURL+"/api/sim/start?force=true", payload)
	if err != nil {
		return fmt.Errorf("run start request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("run start returned status %d: %s", resp.StatusCode, string(body))
	}

	var run struct {
		RunID string `json:"run_id"`
	}
	if err := json.Unmarshal(body, &run); err == nil && run.RunID != "" {
		logger.Get().Info(ctx, "replay run started", logger.String("runID", run.RunID))
	}
	return nil
}
