package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/okian/pitwall/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	phaseDivisor       = 10
)

// Driving phase mix: most samples are flat-out, with occasional fuel-save
// and in-lap stretches so the classifier sees every label.
const (
	casePushPhase     = 7 // weight boundary, cases below this push
	caseConservePhase = 9 // cases in [7,9) lift and coast
)

// Track model constants.
const (
	lapLengthM      = 5200.0
	pushSpeedMin    = 62.0
	pushSpeedRange  = 20.0
	cruiseSpeedMin  = 40.0
	cruiseSpeedSpan = 12.0
	inLapSpeedMin   = 22.0
	inLapSpeedSpan  = 10.0
	baseTyreTemp    = 88.0
	tyreTempSpan    = 24.0
	pitTyreTemp     = 108.0
	sampleSpacingMS = 250
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// driverState carries the evolving race model for one simulated driver.
type driverState struct {
	id        string
	progressM float64
	laps      int
	totalTime float64
	bestLap   float64
	lapTime   float64
	pace      float64 // per-driver pace factor, fixed for the session
}

// generateSamples builds the full session: drivers interleaved in submission
// order, timestamps spaced evenly, field values following a simple race
// model so ranks and intents evolve plausibly.
func generateSamples(ctx context.Context, config *Config, stats *Stats) ([]Sample, error) {
	logger.Get().Info(ctx, "generating session samples",
		logger.Int("drivers", config.Drivers),
		logger.Int("samplesPerDriver", config.Samples))

	drivers := make([]*driverState, config.Drivers)
	for i := range drivers {
		drivers[i] = &driverState{
			id:      "car_" + strconv.Itoa(i+1),
			bestLap: 0,
			pace:    0.95 + getRandomFloat()*0.1,
		}
	}

	samples := make([]Sample, 0, config.Drivers*config.Samples)
	startMS := time.Now().UnixMilli()

	for step := 0; step < config.Samples; step++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during sample generation: %w", ctx.Err())
		default:
		}

		tsMS := startMS + int64(step*sampleSpacingMS)
		for _, d := range drivers {
			s := d.advance(tsMS)
			if config.SampleIDs {
				s.SampleID = d.id + "_" + strconv.Itoa(step)
			}
			samples = append(samples, s)
		}
	}

	// Positions follow completed laps then accumulated time.
	assignPositions(drivers, samples)

	stats.SamplesGenerated = len(samples)
	logger.Get().Info(ctx, "generated samples successfully", logger.Int("count", len(samples)))
	return samples, nil
}

// advance moves the driver one tick and emits the resulting sample.
func (d *driverState) advance(tsMS int64) Sample {
	var speed, throttle, brake, tyre float64

	phase, _ := rand.Int(rand.Reader, big.NewInt(phaseDivisor))
	switch {
	case phase.Int64() < casePushPhase:
		speed = (pushSpeedMin + getRandomFloat()*pushSpeedRange) * d.pace
		throttle = 85 + getRandomFloat()*15
		brake = getRandomFloat() * 8
		tyre = baseTyreTemp + getRandomFloat()*tyreTempSpan
	case phase.Int64() < caseConservePhase:
		speed = (cruiseSpeedMin + getRandomFloat()*cruiseSpeedSpan) * d.pace
		throttle = 25 + getRandomFloat()*15
		brake = getRandomFloat() * 5
		tyre = baseTyreTemp + getRandomFloat()*8
	default:
		speed = (inLapSpeedMin + getRandomFloat()*inLapSpeedSpan) * d.pace
		throttle = 10 + getRandomFloat()*10
		brake = 40 + getRandomFloat()*30
		tyre = pitTyreTemp + getRandomFloat()*6
	}

	dt := float64(sampleSpacingMS) / 1000.0
	d.progressM += speed * dt
	d.totalTime += dt
	d.lapTime += dt
	if d.progressM >= lapLengthM {
		d.progressM -= lapLengthM
		d.laps++
		if d.bestLap == 0 || d.lapTime < d.bestLap {
			d.bestLap = d.lapTime
		}
		d.lapTime = 0
	}

	return Sample{
		DriverID:      d.id,
		TimestampMS:   tsMS,
		SpeedMPS:      speed,
		ThrottlePct:   throttle,
		BrakePct:      brake,
		TyreTemp:      tyre,
		LapProgress:   d.progressM / lapLengthM,
		CompletedLaps: d.laps,
		TotalTime:     d.totalTime,
		BestLap:       d.bestLap,
	}
}

// assignPositions back-fills each sample's position from the final ordering
// by laps and time, so the served board converges to the same ranking.
func assignPositions(drivers []*driverState, samples []Sample) {
	order := make([]*driverState, len(drivers))
	copy(order, drivers)
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if order[j].laps > order[i].laps ||
				(order[j].laps == order[i].laps && order[j].totalTime < order[i].totalTime) {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	positions := make(map[string]int, len(order))
	for i, d := range order {
		positions[d.id] = i + 1
	}
	for i := range samples {
		samples[i].Position = positions[samples[i].DriverID]
	}
}
