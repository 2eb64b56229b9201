// Package risk provides pre-trade portfolio risk checks and the
// Value-at-Risk family of metrics behind them.
package risk

import (
	"math"
	"math/rand"
	"sort"
)

// The VaR and expected-shortfall functions deliberately return 0 (not
// an error) for fewer than 2 observations: thin historical windows are
// a normal condition for newly listed symbols.

// HistoricalVaR is the (1-confidence)-quantile of the empirical return
// distribution, as an absolute value.
func HistoricalVaR(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return math.Abs(quantile(returns, 1-confidence))
}

// ParametricVaR assumes normally distributed returns:
// mean + z(1-confidence) * stddev, as an absolute value.
func ParametricVaR(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	m := mean(returns)
	sd := stdDev(returns, m)
	return math.Abs(m + zScore(1-confidence)*sd)
}

// MonteCarloVaR draws n samples from Normal(mean, stddev) of the
// historical returns and takes the same empirical quantile. The seed
// makes runs reproducible.
func MonteCarloVaR(returns []float64, confidence float64, draws int, seed int64) float64 {
	if len(returns) < 2 {
		return 0
	}
	if draws <= 0 {
		draws = 10000
	}

	m := mean(returns)
	sd := stdDev(returns, m)

	rng := rand.New(rand.NewSource(seed))
	samples := make([]float64, draws)
	for i := range samples {
		samples[i] = m + sd*rng.NormFloat64()
	}
	return math.Abs(quantile(samples, 1-confidence))
}

// ExpectedShortfall is the mean of the return tail at or below the
// historical VaR threshold, as an absolute value.
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	threshold := quantile(returns, 1-confidence)
	var sum float64
	var n int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Abs(sum / float64(n))
}

// Correlation is the Pearson coefficient of two return series. Series
// of mismatched length are truncated to the shorter; degenerate input
// (under 2 points, or zero variance) yields 0.
func Correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return cov / math.Sqrt(va*vb)
}

// quantile returns the p-quantile of xs by sorted-index lookup.
func quantile(xs []float64, p float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	idx := int(p * float64(len(sorted)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the sample standard deviation.
func stdDev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// zScore is the inverse standard normal CDF (Acklam's rational
// approximation, accurate to ~1e-9 over (0, 1)).
func zScore(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	if p >= 1 {
		return math.Inf(1)
	}

	a := [6]float64{-3.969683028665376e+01, 2.209460984245205e+02, -2.759285104469687e+02,
		1.383577518672690e+02, -3.066479806614716e+01, 2.506628277459239e+00}
	b := [5]float64{-5.447609879822406e+01, 1.615858368580409e+02, -1.556989798598866e+02,
		6.680131188771972e+01, -1.328068155288572e+01}
	c := [6]float64{-7.784894002430293e-03, -3.223964580411365e-01, -2.400758277161838e+00,
		-2.549732539343734e+00, 4.374664141464968e+00, 2.938163982698783e+00}
	d := [4]float64{7.784695709041462e-03, 3.224671290700398e-01, 2.445134137142996e+00,
		3.754408661907416e+00}

	const plow, phigh = 0.02425, 1 - 0.02425

	switch {
	case p < plow:
		q := math.Sqrt(-2 * math.Log(p))
		return (((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	case p > phigh:
		q := math.Sqrt(-2 * math.Log(1-p))
		return -(((((c[0]*q+c[1])*q+c[2])*q+c[3])*q+c[4])*q + c[5]) /
			((((d[0]*q+d[1])*q+d[2])*q+d[3])*q + 1)
	default:
		q := p - 0.5
		r := q * q
		return (((((a[0]*r+a[1])*r+a[2])*r+a[3])*r+a[4])*r + a[5]) * q /
			(((((b[0]*r+b[1])*r+b[2])*r+b[3])*r+b[4])*r + 1)
	}
}
