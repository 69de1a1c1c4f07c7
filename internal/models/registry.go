package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"welldecline/domain/decline"
	"welldecline/internal/errors"
)

// BaseTolerance is how far below zero the hyperbolic base 1+b·di·t may
// fall from rounding before the evaluation counts as out of domain.
const BaseTolerance = 1e-9

// Seed values in normalized units
const (
	InitialDecline  = 0.5
	InitialExponent = 0.5
)

// Rate evaluates the model's production rate at time t
func Rate(p decline.Params, t float64) (float64, error) {
	switch p.Kind {
	case decline.Exponential:
		return p.Qi * math.Exp(-p.Di*t), nil

	case decline.Harmonic:
		base := 1 + p.Di*t
		if base <= 0 {
			return 0, errors.Domain("harmonic base 1+di·t is not positive", "t", t, "di", p.Di)
		}
		return p.Qi / base, nil

	case decline.Hyperbolic:
		if p.B == 0 {
			return 0, errors.Domain("hyperbolic exponent must be non-zero", "b", p.B)
		}
		base := 1 + p.B*p.Di*t
		if base <= 0 {
			if base <= -BaseTolerance {
				return 0, errors.Domain("hyperbolic base 1+b·di·t is negative",
					"t", t, "di", p.Di, "b", p.B, "base", base)
			}
			base = math.Abs(base)
		}
		return p.Qi / math.Pow(base, 1/p.B), nil

	default:
		return 0, errors.InvalidInput(fmt.Sprintf("unknown decline model %d", int(p.Kind)))
	}
}

// Curve evaluates the model at every time in ts
func Curve(p decline.Params, ts []float64) ([]float64, error) {
	out := make([]float64, len(ts))
	if err := CurveInto(out, p, ts); err != nil {
		return nil, err
	}
	return out, nil
}

// CurveInto is Curve writing into dst, which must be len(ts) long
func CurveInto(dst []float64, p decline.Params, ts []float64) error {
	for i, t := range ts {
		q, err := Rate(p, t)
		if err != nil {
			return err
		}
		dst[i] = q
	}
	return nil
}

// InitialGuess seeds the optimizer from normalized rates
func InitialGuess(kind decline.Kind, q []float64) decline.Params {
	qi := 1.0
	if len(q) > 0 {
		qi = floats.Max(q)
	}
	switch kind {
	case decline.Hyperbolic:
		return decline.NewHyperbolic(qi, InitialDecline, InitialExponent)
	case decline.Harmonic:
		return decline.NewHarmonic(qi, InitialDecline)
	default:
		return decline.NewExponential(qi, InitialDecline)
	}
}

// ParamNames lists parameter names in Vector order
func ParamNames(kind decline.Kind) []string {
	if kind == decline.Hyperbolic {
		return []string{"qi", "di", "b"}
	}
	return []string{"qi", "di"}
}
