package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/pitwall/internal/simulate"
)

// Default configuration constants.
const (
	defaultDrivers        = 10
	defaultSamples        = 400
	defaultWorkers        = 2 // multiplier for runtime.NumCPU()
	defaultTimeout        = 30 * time.Second
	defaultSessionTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Base URL of the service")
		drivers   = flag.Int("drivers", defaultDrivers, "Number of simulated drivers")
		samples   = flag.Int("samples", defaultSamples, "Samples per driver")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		runName   = flag.String("run", "", "Replay run name to register before submission")
		sampleIDs = flag.Bool("sample-ids", false, "Attach explicit sample ids to exercise retry suppression")
		logFile   = flag.String("log", "", "Log file for session output (default: session_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSessionTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:   *baseURL,
		Drivers:   *drivers,
		Samples:   *samples,
		Workers:   *workers,
		Timeout:   *timeout,
		RunName:   *runName,
		LogFile:   *logFile,
		Verbose:   *verbose,
		SampleIDs: *sampleIDs,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Session failed: " + err.Error() + "\n")
		return
	}
}
