package statistics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"rsmetrics/internal/models"
)

// minAndersonSample keeps the small-sample correction of the critical
// values positive
const minAndersonSample = 5

// andersonCritical5 is the asymptotic 5% critical value of A² for the
// normal case with estimated mean and variance (Stephens 1974)
const andersonCritical5 = 0.787

// AndersonTest runs the Anderson-Darling test against a normal
// distribution whose mean and standard deviation are estimated from the
// sample. The returned critical value is the one for the 5% significance
// level, adjusted for the sample size.
func AndersonTest(values []float64) (models.AndersonResult, error) {
	n := len(values)
	if n < minAndersonSample {
		return models.AndersonResult{}, fmt.Errorf("%w: need at least %d values, got %d", ErrSampleSize, minAndersonSample, n)
	}

	y := make([]float64, n)
	copy(y, values)
	sort.Float64s(y)
	if y[0] == y[n-1] {
		return models.AndersonResult{}, ErrZeroVariance
	}

	mean, std := stat.MeanStdDev(y, nil)
	nf := float64(n)

	var s float64
	for i := 0; i < n; i++ {
		lo := (y[i] - mean) / std
		hi := (y[n-1-i] - mean) / std
		s += float64(2*i+1) / nf * (logNormalCDF(lo) + logNormalCDF(-hi))
	}

	critical := andersonCritical5 / (1 + 4/nf - 25/(nf*nf))

	return models.AndersonResult{
		Statistic:     -nf - s,
		CriticalValue: math.Round(critical*1000) / 1000,
	}, nil
}

// logNormalCDF returns log Φ(z) without underflowing in the lower tail.
// The survival log is logNormalCDF(-z).
func logNormalCDF(z float64) float64 {
	switch {
	case z < -30:
		// Asymptotic expansion of the Mills ratio; erfc underflows past z≈-37
		z2 := z * z
		return -z2/2 - math.Log(-z*math.Sqrt(2*math.Pi)) + math.Log1p(-1/z2+3/(z2*z2))
	case z > 5:
		return math.Log1p(-distuv.UnitNormal.Survival(z))
	default:
		return math.Log(distuv.UnitNormal.CDF(z))
	}
}
