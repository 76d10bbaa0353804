package statistics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"rsmetrics/internal/models"
)

// maxShapiroSample is the largest sample the p-value approximation is
// calibrated for
const maxShapiroSample = 5000

// Polynomial coefficients of Royston's approximation (Algorithm AS R94)
var (
	swC1 = []float64{0.0, 0.221157, -0.147981, -2.071190, 4.434685, -2.706056}
	swC2 = []float64{0.0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.5440, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
	swG  = []float64{-2.273, 0.459}
)

// ShapiroTest runs the Shapiro-Wilk test for normality.
//
// The weights and the p-value follow Royston (1995), Algorithm AS R94,
// which is valid for 3 to 5000 observations.
func ShapiroTest(values []float64) (models.TestResult, error) {
	n := len(values)
	if n < 3 || n > maxShapiroSample {
		return models.TestResult{}, fmt.Errorf("%w: need 3 to %d values, got %d", ErrSampleSize, maxShapiroSample, n)
	}

	x := make([]float64, n)
	copy(x, values)
	sort.Float64s(x)

	rng := x[n-1] - x[0]
	if rng < 1e-19 {
		return models.TestResult{}, ErrZeroVariance
	}

	a := shapiroWeights(n)

	// Work on range-scaled values for numerical stability
	var mean float64
	for _, v := range x {
		mean += v / rng
	}
	mean /= float64(n)

	var ss float64
	for _, v := range x {
		d := v/rng - mean
		ss += d * d
	}

	var b float64
	for i, ai := range a {
		b += ai * (x[n-1-i] - x[i]) / rng
	}

	w := b * b / ss
	if w > 1 {
		w = 1
	}

	return models.TestResult{
		Statistic: w,
		PValue:    shapiroPValue(w, n),
	}, nil
}

// shapiroWeights returns the n/2 leading coefficients of the antisymmetric
// weight vector, normalized so the full vector has unit length
func shapiroWeights(n int) []float64 {
	half := n / 2
	a := make([]float64, half)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an25 := float64(n) + 0.25
	m := make([]float64, half)
	var summ2 float64
	for i := range m {
		m[i] = distuv.UnitNormal.Quantile((float64(i+1) - 0.375) / an25)
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(float64(n))
	a1 := poly(swC1, rsn) - m[0]/ssumm2

	first := 1
	var fac float64
	if n > 5 {
		first = 2
		a2 := -m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1

	for i := first; i < half; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

// shapiroPValue approximates the upper-tail probability of W
func shapiroPValue(w float64, n int) float64 {
	if n == 3 {
		// exact distribution for three observations
		p := 6 / math.Pi * (math.Asin(math.Sqrt(w)) - math.Pi/3)
		return math.Min(math.Max(p, 0), 1)
	}

	an := float64(n)
	y := math.Log(1 - w)

	var m, s float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return 1e-99
		}
		y = -math.Log(gamma - y)
		m = poly(swC3, an)
		s = math.Exp(poly(swC4, an))
	} else {
		xx := math.Log(an)
		m = poly(swC5, xx)
		s = math.Exp(poly(swC6, xx))
	}

	return distuv.Normal{Mu: m, Sigma: s}.Survival(y)
}

// poly evaluates cc[0] + cc[1]*x + cc[2]*x^2 + ...
func poly(cc []float64, x float64) float64 {
	var res float64
	for i := len(cc) - 1; i >= 0; i-- {
		res = res*x + cc[i]
	}
	return res
}
