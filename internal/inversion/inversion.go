// Package inversion converts between rate, cumulative production and time
// for fitted Arps models. It backs EUR prediction: given an economic
// limit rate it returns when the well reaches it and how much it will
// have produced by then.
package inversion

import (
	"math"

	"welldecline/internal/errors"
)

// HarmonicTolerance is the distance from b=1 inside which the harmonic
// closed forms replace the general hyperbolic ones, whose exponent
// 1/(1-b) is singular at b=1.
const HarmonicTolerance = 1e-10

func isHarmonic(b float64) bool {
	return math.Abs(b-1) < HarmonicTolerance
}

func checkParams(qi, di, b float64) error {
	if !(qi > 0) || math.IsInf(qi, 0) {
		return errors.Domain("initial rate must be positive and finite", "qi", qi)
	}
	if !(di > 0) || math.IsInf(di, 0) {
		return errors.Domain("initial decline rate must be positive and finite", "di", di)
	}
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return errors.Domain("decline exponent must be finite", "b", b)
	}
	return nil
}

func checkRate(q, qi float64) error {
	if !(q > 0) || math.IsInf(q, 0) {
		return errors.Domain("rate must be positive and finite", "q", q)
	}
	if q > qi {
		return errors.Domain("rate exceeds initial rate", "q", q, "qi", qi)
	}
	return nil
}

// RateFromCumulative returns the rate reached once gp has been produced
func RateFromCumulative(gp, qi, di, b float64) (float64, error) {
	if err := checkParams(qi, di, b); err != nil {
		return 0, err
	}
	if !(gp >= 0) || math.IsInf(gp, 0) {
		return 0, errors.Domain("cumulative production must be non-negative and finite", "gp", gp)
	}

	if isHarmonic(b) {
		return qi * math.Exp(-gp*di/qi), nil
	}

	base := math.Pow(qi, 1-b) - gp*di*(1-b)/math.Pow(qi, b)
	if base <= 0 {
		// only reachable for b < 1: gp is at or beyond the finite recoverable volume
		return 0, errors.Domain("cumulative production exceeds the model's recoverable volume",
			"gp", gp, "limit", qi/(di*(1-b)), "b", b)
	}
	return math.Pow(base, 1/(1-b)), nil
}

// CumulativeFromRate returns the volume produced by the time the rate has
// declined to q. It is the exact inverse of RateFromCumulative.
func CumulativeFromRate(q, qi, di, b float64) (float64, error) {
	if err := checkParams(qi, di, b); err != nil {
		return 0, err
	}
	if err := checkRate(q, qi); err != nil {
		return 0, err
	}

	if isHarmonic(b) {
		return (qi / di) * math.Log(qi/q), nil
	}
	return math.Pow(qi, b) / (di * (1 - b)) * (math.Pow(qi, 1-b) - math.Pow(q, 1-b)), nil
}

// TimeFromRate returns the elapsed time at which the rate has declined to q
func TimeFromRate(q, qi, di, b float64) (float64, error) {
	if err := checkParams(qi, di, b); err != nil {
		return 0, err
	}
	if err := checkRate(q, qi); err != nil {
		return 0, err
	}

	// ((qi/q)^b - 1)/(b·di), evaluated without cancellation for small b
	x := math.Log(qi / q)
	if b == 0 {
		return x / di, nil
	}
	return math.Expm1(b*x) / (b * di), nil
}

// RecoverableLimit is the total volume the model yields as the rate goes to
// zero. It is finite only for b < 1.
func RecoverableLimit(qi, di, b float64) (float64, error) {
	if err := checkParams(qi, di, b); err != nil {
		return 0, err
	}
	if b >= 1 || isHarmonic(b) {
		return math.Inf(1), nil
	}
	return qi / (di * (1 - b)), nil
}
