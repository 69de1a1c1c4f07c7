// Package normalize rescales the time and rate axes of a production series
// into [0, 1] so the least-squares Jacobian is well conditioned, and maps
// fitted parameters back to field units.
package normalize

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"welldecline/domain/decline"
	"welldecline/domain/production"
	"welldecline/internal/errors"
)

// Series is a normalized time series together with the scales that undo it
type Series struct {
	T      []float64 // day / ScaleT
	Q      []float64 // rate / ScaleQ
	ScaleT float64   // max(day)
	ScaleQ float64   // max(rate)
}

// Len returns the number of points
func (s Series) Len() int {
	return len(s.T)
}

// Normalize divides days by max(day) and rates by max(rate)
func Normalize(ts production.TimeSeries) (Series, error) {
	if err := ts.Validate(); err != nil {
		return Series{}, err
	}
	days, rates := ts.Days(), ts.Rates()

	scaleT := floats.Max(days)
	scaleQ := floats.Max(rates)
	if !(scaleT > 0) {
		return Series{}, errors.InvalidData("cannot normalize time axis: max(day) must be positive", "max_day", scaleT)
	}
	if !(scaleQ > 0) {
		return Series{}, errors.InvalidData("cannot normalize rate axis: max(rate) must be positive", "max_rate", scaleQ)
	}

	floats.Scale(1/scaleT, days)
	floats.Scale(1/scaleQ, rates)
	return Series{T: days, Q: rates, ScaleT: scaleT, ScaleQ: scaleQ}, nil
}

// Denormalize maps parameters fitted on a normalized series back to field
// units. The decline exponent is dimensionless and is left unchanged.
func Denormalize(p decline.Params, scaleT, scaleQ float64) decline.Params {
	out := p
	out.Qi = p.Qi * scaleQ
	out.Di = p.Di / scaleT
	return out
}

// DenormalizeCovariance applies the diagonal change of variables used by
// Denormalize to a parameter covariance matrix.
func DenormalizeCovariance(kind decline.Kind, cov *mat.SymDense, scaleT, scaleQ float64) *mat.SymDense {
	return scaleCovariance(cov, jacobianDiag(kind, scaleQ, 1/scaleT))
}

// CumulativeSeries is a rate-vs-cumulative series on normalized axes
type CumulativeSeries struct {
	G      []float64 // cumulative / ScaleG
	Q      []float64 // rate / ScaleQ
	ScaleG float64
	ScaleQ float64
}

// NormalizeCumulative scales the cumulative and rate axes of a series for
// the rate-vs-cumulative fit.
func NormalizeCumulative(ts production.TimeSeries) (CumulativeSeries, error) {
	cs, err := ts.Cumulative()
	if err != nil {
		return CumulativeSeries{}, err
	}
	g := append([]float64(nil), cs.Cumulative...)
	q := ts.Rates()

	scaleG := floats.Max(g)
	scaleQ := floats.Max(q)
	if !(scaleG > 0) || !(scaleQ > 0) {
		return CumulativeSeries{}, errors.InvalidData("cannot normalize cumulative series: zero production",
			"max_cumulative", scaleG, "max_rate", scaleQ)
	}

	floats.Scale(1/scaleG, g)
	floats.Scale(1/scaleQ, q)
	return CumulativeSeries{G: g, Q: q, ScaleG: scaleG, ScaleQ: scaleQ}, nil
}

// DenormalizeCumulative maps parameters of a rate-vs-cumulative fit back
// to field units. With q = ScaleQ·q_n and Gp = ScaleG·G_n the model is
// invariant when qi = qi_n·ScaleQ and di = di_n·ScaleQ/ScaleG.
func DenormalizeCumulative(p decline.Params, scaleG, scaleQ float64) decline.Params {
	out := p
	out.Qi = p.Qi * scaleQ
	out.Di = p.Di * scaleQ / scaleG
	return out
}

// DenormalizeCumulativeCovariance is the covariance counterpart of DenormalizeCumulative
func DenormalizeCumulativeCovariance(kind decline.Kind, cov *mat.SymDense, scaleG, scaleQ float64) *mat.SymDense {
	return scaleCovariance(cov, jacobianDiag(kind, scaleQ, scaleQ/scaleG))
}

func jacobianDiag(kind decline.Kind, qiScale, diScale float64) []float64 {
	d := []float64{qiScale, diScale}
	if kind == decline.Hyperbolic {
		d = append(d, 1)
	}
	return d
}

// scaleCovariance returns D·C·D for diagonal D
func scaleCovariance(cov *mat.SymDense, d []float64) *mat.SymDense {
	if cov == nil {
		return nil
	}
	n := cov.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := cov.At(i, j)
			if math.IsInf(v, 0) {
				out.SetSym(i, j, v)
				continue
			}
			out.SetSym(i, j, d[i]*v*d[j])
		}
	}
	return out
}
