// Package profiling summarizes the shape of fit residuals.
package profiling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"welldecline/internal/errors"
)

// MinResiduals is the smallest residual count that can be profiled
const MinResiduals = 4

// ResidualProfile describes the residuals of a fitted curve
type ResidualProfile struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`  // sample standard deviation
	Skewness float64 `json:"skewness"` // adjusted Fisher-Pearson G1
	Kurtosis float64 `json:"kurtosis"` // G2 + 3, about 3 for a normal sample

	// Jarque-Bera normality statistic and its chi-squared(2) p-value
	JarqueBera   float64 `json:"jarque_bera"`
	NormalityP   float64 `json:"normality_p"`
	IsNormal     bool    `json:"is_normal"` // NormalityP > 0.05
	DurbinWatson float64 `json:"durbin_watson"`

	// Residuals more than three standard deviations from the mean
	Outliers int `json:"outliers"`
}

// Profile computes the residual profile of observed minus fitted values
func Profile(observed, fitted []float64) (ResidualProfile, error) {
	if len(observed) != len(fitted) {
		return ResidualProfile{}, errors.InvalidData("observed and fitted lengths differ",
			"observed", len(observed), "fitted", len(fitted))
	}
	if len(observed) < MinResiduals {
		return ResidualProfile{}, errors.InvalidData("too few residuals to profile",
			"residuals", len(observed), "required", MinResiduals)
	}

	res := make([]float64, len(observed))
	for i := range observed {
		res[i] = observed[i] - fitted[i]
	}

	mean, err := stats.Mean(res)
	if err != nil {
		return ResidualProfile{}, err
	}
	stdDev, err := stats.StandardDeviationSample(res)
	if err != nil {
		return ResidualProfile{}, err
	}

	p := ResidualProfile{
		Count:        len(res),
		Mean:         mean,
		StdDev:       stdDev,
		DurbinWatson: durbinWatson(res),
		Outliers:     countOutliers(res, mean, stdDev),
	}
	if stdDev == 0 {
		// a perfect fit has no shape to describe
		p.NormalityP = math.NaN()
		return p, nil
	}

	m2, m3, m4 := centralMoments(res, mean)
	p.Skewness = skewness(len(res), m2, m3)
	p.Kurtosis = kurtosis(len(res), m2, m4)
	n := float64(len(res))
	excess := p.Kurtosis - 3
	p.JarqueBera = n / 6 * (p.Skewness*p.Skewness + excess*excess/4)
	p.NormalityP = 1 - distuv.ChiSquared{K: 2}.CDF(p.JarqueBera)
	p.IsNormal = p.NormalityP > 0.05
	return p, nil
}

// centralMoments returns the second, third and fourth population moments
func centralMoments(data []float64, mean float64) (m2, m3, m4 float64) {
	for _, x := range data {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(data))
	return m2 / n, m3 / n, m4 / n
}

// skewness is the adjusted Fisher-Pearson coefficient G1
func skewness(count int, m2, m3 float64) float64 {
	n := float64(count)
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// kurtosis returns the bias-corrected excess kurtosis G2, shifted by 3
func kurtosis(count int, m2, m4 float64) float64 {
	n := float64(count)
	g2 := m4/(m2*m2) - 3
	return ((n+1)*g2+6)*(n-1)/((n-2)*(n-3)) + 3
}

// durbinWatson is near 2 for uncorrelated residuals and near 0 when
// successive residuals share a sign, as with a misspecified model.
func durbinWatson(res []float64) float64 {
	num, den := 0.0, 0.0
	for i, r := range res {
		den += r * r
		if i > 0 {
			d := r - res[i-1]
			num += d * d
		}
	}
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

func countOutliers(data []float64, mean, stdDev float64) int {
	count := 0
	for _, x := range data {
		if math.Abs(x-mean) > 3*stdDev {
			count++
		}
	}
	return count
}
