package statistics

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"

	"rsmetrics/internal/models"
)

const (
	// DefaultMaxSample is the number of values the normality tests run on
	DefaultMaxSample = 5000

	// SignificanceLevel is the p-value threshold below which a test rejects normality
	SignificanceLevel = 0.05

	// SkewnessThreshold is the absolute skewness above which a distribution
	// is considered asymmetric
	SkewnessThreshold = 0.5
)

// NormalityTester runs normality tests on a bounded random subsample
type NormalityTester struct {
	// MaxSample caps the number of values passed to the tests
	MaxSample int

	// src drives subsampling. A nil source uses the global generator.
	src rand.Source
}

// NewNormalityTester creates a tester that subsamples with src. Pass a
// seeded source (e.g. rand.NewPCG) for reproducible results, or nil to use
// the unseeded global generator.
func NewNormalityTester(src rand.Source) *NormalityTester {
	return &NormalityTester{
		MaxSample: DefaultMaxSample,
		src:       src,
	}
}

// SampleData returns values unchanged when it holds at most maxSample
// entries, otherwise a uniform random subset of exactly maxSample entries
// drawn without replacement. A non-positive maxSample means DefaultMaxSample.
func (t *NormalityTester) SampleData(values []float64, maxSample int) []float64 {
	if maxSample <= 0 {
		maxSample = DefaultMaxSample
	}
	if len(values) <= maxSample {
		return values
	}

	idxs := make([]int, maxSample)
	sampleuv.WithoutReplacement(idxs, len(values), t.src)

	sample := make([]float64, maxSample)
	for i, idx := range idxs {
		sample[i] = values[idx]
	}
	return sample
}

// RunAllTests subsamples values and runs the Shapiro-Wilk, D'Agostino and
// Anderson-Darling tests on the same subsample.
//
// A test that cannot run on the sample (too few values, zero variance)
// leaves its result nil. The returned error joins those failures; the
// results of the tests that did run are returned alongside it.
func (t *NormalityTester) RunAllTests(values []float64) (models.NormalityTestResults, error) {
	sample := t.SampleData(values, t.MaxSample)

	var results models.NormalityTestResults
	var errs []error

	if r, err := ShapiroTest(sample); err != nil {
		errs = append(errs, fmt.Errorf("shapiro-wilk: %w", err))
	} else {
		results.Shapiro = &r
	}

	if r, err := DAgostinoTest(sample); err != nil {
		errs = append(errs, fmt.Errorf("d'agostino: %w", err))
	} else {
		results.DAgostino = &r
	}

	if r, err := AndersonTest(sample); err != nil {
		errs = append(errs, fmt.Errorf("anderson-darling: %w", err))
	} else {
		results.Anderson = &r
	}

	return results, errors.Join(errs...)
}

// InterpretNormality combines the test results and the skewness into a
// verdict. Every available check runs, in order Shapiro-Wilk, D'Agostino,
// Anderson-Darling, skewness, and each failing one adds a reason. Checks
// whose input is nil are skipped. The distribution is normal iff no reason
// was added.
func InterpretNormality(e models.NormalityEvidence) models.NormalityVerdict {
	reasons := []string{}

	if r := e.Tests.Shapiro; r != nil && r.PValue < SignificanceLevel {
		reasons = append(reasons,
			fmt.Sprintf("Shapiro-Wilk test p-value: %.6f < %.2f", r.PValue, SignificanceLevel))
	}

	if r := e.Tests.DAgostino; r != nil && r.PValue < SignificanceLevel {
		reasons = append(reasons,
			fmt.Sprintf("D'Agostino's test p-value: %.6f < %.2f", r.PValue, SignificanceLevel))
	}

	if r := e.Tests.Anderson; r != nil && r.Statistic > r.CriticalValue {
		reasons = append(reasons,
			fmt.Sprintf("Anderson-Darling test: %.4f > %.4f (critical value)", r.Statistic, r.CriticalValue))
	}

	if e.Skewness != nil && math.Abs(*e.Skewness) > SkewnessThreshold {
		direction := "left"
		if *e.Skewness > 0 {
			direction = "right"
		}
		reasons = append(reasons,
			fmt.Sprintf("Skewness: %.4f, indicating %s-skewed distribution", *e.Skewness, direction))
	}

	return models.NormalityVerdict{
		IsNormal: len(reasons) == 0,
		Reasons:  reasons,
	}
}
