// Package features maintains per-driver rolling telemetry windows and
// computes the summary statistics consumed by the intent classifier.
package features

import (
	"math"

	"github.com/okian/pitwall/internal/domain/model"
)

// Default window configuration constants.
const (
	defaultCapacity   = 40
	defaultMinSamples = 5
)

// point is one sample reduced to the five tracked numeric channels.
// Missing channels read as zero, matching the producer contract where
// telemetry fields are optional.
type point struct {
	speed       float64
	throttle    float64
	brake       float64
	tyreTemp    float64
	lapProgress float64
}

// Window is a fixed-capacity rolling buffer of recent samples for one
// driver. Once full, the newest sample evicts the oldest.
type Window struct {
	buf      []point
	head     int // index of the oldest element
	size     int
	capacity int
}

// NewWindow creates a rolling window with the given capacity.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &Window{
		buf:      make([]point, capacity),
		capacity: capacity,
	}
}

// Push appends a sample, evicting the oldest one beyond capacity.
func (w *Window) Push(s model.Sample) {
	p := point{}
	p.speed, _ = s.Float(model.FieldSpeed)
	p.throttle, _ = s.Float(model.FieldThrottle)
	p.brake, _ = s.Float(model.FieldBrake)
	p.tyreTemp, _ = s.Float(model.FieldTyreTemp)
	p.lapProgress, _ = s.Float(model.FieldLapProgress)

	if w.size < w.capacity {
		w.buf[(w.head+w.size)%w.capacity] = p
		w.size++
		return
	}
	w.buf[w.head] = p
	w.head = (w.head + 1) % w.capacity
}

// Len returns the number of stored samples.
func (w *Window) Len() int {
	return w.size
}

// Ready reports whether the window holds enough samples for features to be
// meaningful.
func (w *Window) Ready(minSamples int) bool {
	return w.size >= minSamples
}

// at returns the i-th stored point in arrival order (0 = oldest).
func (w *Window) at(i int) point {
	return w.buf[(w.head+i)%w.capacity]
}

// Features computes summary statistics over the window. The result is
// computed fresh on every call and never cached, so it cannot go stale
// independent of the buffer.
func (w *Window) Features() model.FeatureSet {
	if w.size == 0 {
		return model.FeatureSet{}
	}

	var sum point
	for i := 0; i < w.size; i++ {
		p := w.at(i)
		sum.speed += p.speed
		sum.throttle += p.throttle
		sum.brake += p.brake
		sum.tyreTemp += p.tyreTemp
		sum.lapProgress += p.lapProgress
	}
	n := float64(w.size)
	speedMean := sum.speed / n

	var speedVar float64
	for i := 0; i < w.size; i++ {
		d := w.at(i).speed - speedMean
		speedVar += d * d
	}

	first := w.at(0)
	last := w.at(w.size - 1)

	slope := 0.0
	if w.size >= 2 {
		slope = (last.lapProgress - first.lapProgress) / float64(w.size-1)
	}

	return model.FeatureSet{
		SpeedMean:    speedMean,
		SpeedStd:     math.Sqrt(speedVar / n),
		DeltaSpeed:   last.speed - speedMean,
		ThrottleMean: sum.throttle / n,
		BrakeMean:    sum.brake / n,
		TyreTempMean: sum.tyreTemp / n,
		LapProgSlope: slope,
		Samples:      w.size,
	}
}
