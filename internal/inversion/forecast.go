package inversion

import (
	"fmt"
	"math"

	"welldecline/domain/decline"
	"welldecline/internal/errors"
)

// Forecast answers when a fitted well declines to the target rate and how
// much it will have produced by then.
func Forecast(p decline.Params, query decline.ForecastQuery) (decline.ForecastResult, error) {
	q := query.TargetRate
	if err := checkParams(p.Qi, p.Di, p.B); err != nil {
		return decline.ForecastResult{}, err
	}
	if err := checkRate(q, p.Qi); err != nil {
		return decline.ForecastResult{}, err
	}

	switch p.Kind {
	case decline.Exponential:
		return decline.ForecastResult{
			TimeToTarget:       math.Log(p.Qi/q) / p.Di,
			CumulativeAtTarget: (p.Qi - q) / p.Di,
		}, nil

	case decline.Harmonic:
		return decline.ForecastResult{
			TimeToTarget:       (p.Qi/q - 1) / p.Di,
			CumulativeAtTarget: (p.Qi / p.Di) * math.Log(p.Qi/q),
		}, nil

	case decline.Hyperbolic:
		t, err := TimeFromRate(q, p.Qi, p.Di, p.B)
		if err != nil {
			return decline.ForecastResult{}, err
		}
		gp, err := CumulativeFromRate(q, p.Qi, p.Di, p.B)
		if err != nil {
			return decline.ForecastResult{}, err
		}
		return decline.ForecastResult{TimeToTarget: t, CumulativeAtTarget: gp}, nil

	default:
		return decline.ForecastResult{}, errors.InvalidInput(fmt.Sprintf("unknown decline model %d", int(p.Kind)))
	}
}
