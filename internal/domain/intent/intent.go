// Package intent classifies driver behavior from rolling-window features.
//
// The classifier is an explicit rule table, not a trained model: each rule
// adds a fixed weight to one label when its predicate holds. The rule set is
// data, so it can be extended or replaced without touching control flow.
package intent

import (
	"context"
	"math"

	"github.com/okian/pitwall/internal/domain/model"
)

// ModelVersion tags every prediction so replay analysis can tell rule
// revisions apart.
const ModelVersion = "intent-rules-v1"

// Labels is the fixed, ordered label set.
var Labels = []string{LabelPush, LabelConserve, LabelPreparePit, LabelBluff}

// Intent labels.
const (
	LabelPush       = "push"
	LabelConserve   = "conserve"
	LabelPreparePit = "prepare_pit"
	LabelBluff      = "bluff"
)

// smoothing avoids a zero score sum so normalization never divides by zero.
const smoothing = 0.01

// Rule bumps one label's score by Weight when When holds.
type Rule struct {
	Label  string
	Weight float64
	When   func(f model.FeatureSet) bool
}

// defaultRules mirrors the tuned thresholds of the original rule set.
// Thresholds and weights are configuration constants, not derived values.
func defaultRules() []Rule {
	return []Rule{
		{Label: LabelPush, Weight: 2.0, When: func(f model.FeatureSet) bool {
			return f.SpeedMean > 35 && f.DeltaSpeed > 0.5 && f.ThrottleMean > 40
		}},
		{Label: LabelPush, Weight: 0.5, When: func(f model.FeatureSet) bool {
			return f.SpeedStd > 3.0
		}},
		{Label: LabelPreparePit, Weight: 2.0, When: func(f model.FeatureSet) bool {
			return f.TyreTempMean > 80 && f.BrakeMean > 10
		}},
		{Label: LabelPreparePit, Weight: 1.0, When: func(f model.FeatureSet) bool {
			return f.BrakeMean > 20 && f.LapProgSlope < 0
		}},
		{Label: LabelConserve, Weight: 2.0, When: func(f model.FeatureSet) bool {
			return f.SpeedMean < 25 && f.ThrottleMean < 30 && f.SpeedStd < 2.0
		}},
		{Label: LabelConserve, Weight: 0.5, When: func(f model.FeatureSet) bool {
			return math.Abs(f.LapProgSlope) < 0.001
		}},
		{Label: LabelBluff, Weight: 1.5, When: func(f model.FeatureSet) bool {
			return f.SpeedStd > 6.0 && math.Abs(f.DeltaSpeed) > 3.0 && f.BrakeMean < 5
		}},
	}
}

// Classifier evaluates the rule table over a feature set.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier with configuration options.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		rules: defaultRules(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Predict maps features to a label, a probability distribution over the
// fixed label set, and a confidence. It is side-effect-free and total: any
// finite feature input yields probabilities summing to 1.
//
// Empty features (cold start) yield the uniform distribution with the
// neutral "conserve" label.
func (c *Classifier) Predict(_ context.Context, driverID string, tsMS int64, f model.FeatureSet) model.Prediction {
	probs := make(map[string]float64, len(Labels))

	if f.Empty() {
		uniform := 1.0 / float64(len(Labels))
		for _, l := range Labels {
			probs[l] = uniform
		}
		return model.Prediction{
			DriverID:      driverID,
			TSMS:          tsMS,
			Intent:        LabelConserve,
			Probabilities: probs,
			Confidence:    uniform,
			Features:      f,
			ModelVersion:  ModelVersion,
		}
	}

	scores := make(map[string]float64, len(Labels))
	for _, r := range c.rules {
		if r.When(f) {
			scores[r.Label] += r.Weight
		}
	}

	total := 0.0
	for _, l := range Labels {
		scores[l] += smoothing
		total += scores[l]
	}

	best := Labels[0]
	for _, l := range Labels {
		probs[l] = scores[l] / total
		if probs[l] > probs[best] {
			best = l
		}
	}

	return model.Prediction{
		DriverID:      driverID,
		TSMS:          tsMS,
		Intent:        best,
		Probabilities: probs,
		Confidence:    probs[best],
		Features:      f,
		ModelVersion:  ModelVersion,
	}
}
