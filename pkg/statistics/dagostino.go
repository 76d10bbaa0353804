package statistics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"rsmetrics/internal/models"
)

// minDAgostinoSample is the smallest sample the skewness transform supports
const minDAgostinoSample = 8

// DAgostinoTest runs D'Agostino and Pearson's omnibus K² test, combining
// the normal approximations of the sample skewness and kurtosis. The
// p-value comes from the chi-squared distribution with two degrees of
// freedom.
func DAgostinoTest(values []float64) (models.TestResult, error) {
	n := len(values)
	if n < minDAgostinoSample {
		return models.TestResult{}, fmt.Errorf("%w: need at least %d values, got %d", ErrSampleSize, minDAgostinoSample, n)
	}
	if floats.Min(values) == floats.Max(values) {
		return models.TestResult{}, ErrZeroVariance
	}

	m2 := stat.Moment(2, values, nil)
	m3 := stat.Moment(3, values, nil)
	m4 := stat.Moment(4, values, nil)

	zs := skewnessZ(m3/math.Pow(m2, 1.5), n)
	zk := kurtosisZ(m4/(m2*m2), n)
	k2 := zs*zs + zk*zk

	return models.TestResult{
		Statistic: k2,
		PValue:    distuv.ChiSquared{K: 2}.Survival(k2),
	}, nil
}

// skewnessZ transforms the sample skewness b1 into an approximately
// standard normal score (D'Agostino 1970)
func skewnessZ(b1 float64, n int) float64 {
	nf := float64(n)
	y := b1 * math.Sqrt((nf+1)*(nf+3)/(6*(nf-2)))
	beta2 := 3 * (nf*nf + 27*nf - 70) * (nf + 1) * (nf + 3) /
		((nf - 2) * (nf + 5) * (nf + 7) * (nf + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	delta := 1 / math.Sqrt(0.5*math.Log(w2))
	alpha := math.Sqrt(2 / (w2 - 1))
	return delta * math.Asinh(y/alpha)
}

// kurtosisZ transforms the sample kurtosis b2 (not excess) into an
// approximately standard normal score (Anscombe & Glynn 1983)
func kurtosisZ(b2 float64, n int) float64 {
	nf := float64(n)
	e := 3 * (nf - 1) / (nf + 1)
	varb2 := 24 * nf * (nf - 2) * (nf - 3) / ((nf + 1) * (nf + 1) * (nf + 3) * (nf + 5))
	x := (b2 - e) / math.Sqrt(varb2)

	sqrtBeta1 := 6 * (nf*nf - 5*nf + 2) / ((nf + 7) * (nf + 9)) *
		math.Sqrt(6*(nf+3)*(nf+5)/(nf*(nf-2)*(nf-3)))
	a := 6 + 8/sqrtBeta1*(2/sqrtBeta1+math.Sqrt(1+4/(sqrtBeta1*sqrtBeta1)))

	term1 := 1 - 2/(9*a)
	denom := 1 + x*math.Sqrt(2/(a-4))
	if denom == 0 {
		return math.NaN()
	}
	term2 := math.Cbrt((1 - 2/a) / math.Abs(denom))
	if denom < 0 {
		term2 = -term2
	}
	return (term1 - term2) / math.Sqrt(2/(9*a))
}
