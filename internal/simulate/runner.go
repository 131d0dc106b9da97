package simulate

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/pitwall/pkg/logger"
)

// processingDrainDelay gives the async pipeline time to drain before the
// final leaderboard read.
const processingDrainDelay = 2 * time.Second

// Run executes a complete simulated session against a running service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting simulated session",
		logger.String("baseURL", config.BaseURL),
		logger.Int("drivers", config.Drivers),
		logger.Int("samplesPerDriver", config.Samples),
		logger.Int("workers", config.Workers),
		logger.String("runName", config.RunName))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	if config.RunName != "" {
		if err := startRun(ctx, config); err != nil {
			return fmt.Errorf("run registration failed: %w", err)
		}
	}

	samples, err := generateSamples(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("sample generation failed: %w", err)
	}

	if err := submitSamples(ctx, config, samples, stats); err != nil {
		return fmt.Errorf("sample submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for pipeline to drain")
	time.Sleep(processingDrainDelay)

	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	for _, e := range leaderboard {
		logger.Get().Info(ctx, "leaderboard entry",
			logger.Int("rank", e.Rank),
			logger.String("driver", e.DriverID))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "session completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != statusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats prints the final session statistics.
func displayFinalStats(stats *Stats) {
	var successRate, samplesPerSecond float64

	if stats.SamplesSubmitted > 0 {
		successRate = float64(stats.SamplesSuccessful) / float64(stats.SamplesSubmitted) * 100
	}
	if stats.Duration > 0 {
		samplesPerSecond = float64(stats.SamplesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("samplesGenerated", stats.SamplesGenerated),
		logger.Int("samplesSubmitted", stats.SamplesSubmitted),
		logger.Int("samplesSuccessful", stats.SamplesSuccessful),
		logger.Int("samplesDuplicate", stats.SamplesDuplicate),
		logger.Int("samplesThrottled", stats.SamplesThrottled),
		logger.Int("samplesFailed", stats.SamplesFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("samplesPerSecond", samplesPerSecond))
}
