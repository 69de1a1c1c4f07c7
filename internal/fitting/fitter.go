// Package fitting regresses Arps decline models against normalized
// production data with a bounded nonlinear least-squares solver.
package fitting

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"welldecline/domain/decline"
	"welldecline/internal/errors"
	"welldecline/internal/inversion"
	"welldecline/internal/models"
	"welldecline/internal/normalize"
)

// Method selects the least-squares solver
type Method string

const (
	MethodLevenbergMarquardt Method = "levenberg-marquardt"
	MethodNelderMead         Method = "nelder-mead"
)

// ParseMethod accepts the solver name or its short form
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lm", string(MethodLevenbergMarquardt):
		return MethodLevenbergMarquardt, nil
	case "nm", string(MethodNelderMead):
		return MethodNelderMead, nil
	default:
		return "", errors.InvalidInput(fmt.Sprintf("unknown solver %q", s))
	}
}

// Settings bounds a single regression
type Settings struct {
	Method         Method
	MaxIterations  int           // solver iterations
	MaxEvaluations int           // model evaluations, finite-difference probes included
	Tolerance      float64       // relative cost and step tolerance
	// ResidualTolerance is the largest RMS residual, in normalized rate
	// units, accepted from a converged run.
	ResidualTolerance float64
	Timeout           time.Duration // zero disables the wall-clock limit
}

// DefaultSettings returns the solver budget used by the CLI
func DefaultSettings() Settings {
	return Settings{
		Method:            MethodLevenbergMarquardt,
		MaxIterations:     200,
		MaxEvaluations:    2000,
		Tolerance:         1e-10,
		ResidualTolerance: 0.2,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Method == "" {
		s.Method = d.Method
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.MaxEvaluations <= 0 {
		s.MaxEvaluations = d.MaxEvaluations
	}
	if s.Tolerance <= 0 {
		s.Tolerance = d.Tolerance
	}
	if s.ResidualTolerance <= 0 {
		s.ResidualTolerance = d.ResidualTolerance
	}
	return s
}

// Fitter runs regressions. It holds no state between calls and is safe for
// concurrent use.
type Fitter struct {
	settings Settings
}

// NewFitter creates a fitter, filling unset settings with defaults
func NewFitter(settings Settings) *Fitter {
	return &Fitter{settings: settings.withDefaults()}
}

// Settings returns the effective settings
func (f *Fitter) Settings() Settings {
	return f.settings
}

// Fit regresses the rate-vs-time model of the given kind against a
// normalized series and returns parameters in field units.
func (f *Fitter) Fit(ctx context.Context, kind decline.Kind, s normalize.Series) (decline.FitResult, error) {
	if !kind.Valid() {
		return decline.FitResult{}, errors.InvalidInput(fmt.Sprintf("unknown decline model %d", int(kind)))
	}
	if err := checkInputs(kind, s.T, s.Q); err != nil {
		return decline.FitResult{}, err
	}

	prob := &problem{
		y: s.Q,
		model: func(dst, x []float64) error {
			return models.CurveInto(dst, decline.ParamsFromVector(kind, x), s.T)
		},
	}

	x0 := models.InitialGuess(kind, s.Q).Vector()
	sol, err := f.solve(ctx, prob, x0)
	if err != nil {
		return decline.FitResult{}, errors.Wrapf(err, "%s fit", kind)
	}
	if err := f.accept(kind, prob, sol); err != nil {
		return decline.FitResult{}, errors.Wrapf(err, "%s fit", kind)
	}

	cov := covariance(prob, sol)
	params := normalize.Denormalize(decline.ParamsFromVector(kind, sol.x), s.ScaleT, s.ScaleQ)
	return decline.FitResult{
		Kind:       kind,
		Params:     params,
		Covariance: normalize.DenormalizeCovariance(kind, cov, s.ScaleT, s.ScaleQ),
		Stats:      f.stats(prob, sol, s.ScaleQ),
	}, nil
}

// FitCumulative regresses the hyperbolic rate-vs-cumulative relation
// against a normalized cumulative series.
func (f *Fitter) FitCumulative(ctx context.Context, cs normalize.CumulativeSeries) (decline.FitResult, error) {
	kind := decline.Hyperbolic
	if err := checkInputs(kind, cs.G, cs.Q); err != nil {
		return decline.FitResult{}, err
	}

	prob := &problem{
		y: cs.Q,
		model: func(dst, x []float64) error {
			for i, g := range cs.G {
				q, err := inversion.RateFromCumulative(g, x[0], x[1], x[2])
				if err != nil {
					return err
				}
				dst[i] = q
			}
			return nil
		},
	}

	x0 := models.InitialGuess(kind, cs.Q).Vector()
	sol, err := f.solve(ctx, prob, x0)
	if err != nil {
		return decline.FitResult{}, errors.Wrap(err, "rate-vs-cumulative fit")
	}
	if err := f.accept(kind, prob, sol); err != nil {
		return decline.FitResult{}, errors.Wrap(err, "rate-vs-cumulative fit")
	}

	cov := covariance(prob, sol)
	params := normalize.DenormalizeCumulative(decline.ParamsFromVector(kind, sol.x), cs.ScaleG, cs.ScaleQ)
	return decline.FitResult{
		Kind:       kind,
		Params:     params,
		Covariance: normalize.DenormalizeCumulativeCovariance(kind, cov, cs.ScaleG, cs.ScaleQ),
		Stats:      f.stats(prob, sol, cs.ScaleQ),
	}, nil
}

func (f *Fitter) solve(ctx context.Context, prob *problem, x0 []float64) (solution, error) {
	switch f.settings.Method {
	case MethodNelderMead:
		return nelderMead(ctx, prob, x0, f.settings)
	default:
		return levenbergMarquardt(ctx, prob, x0, f.settings)
	}
}

// accept rejects runs whose parameters or residuals are unusable
func (f *Fitter) accept(kind decline.Kind, prob *problem, sol solution) error {
	n := float64(len(prob.y))
	rms := math.Sqrt(sol.ssr / n)
	if math.IsNaN(rms) || rms > f.settings.ResidualTolerance {
		return errors.Convergence("residual did not fall below tolerance",
			"rms", rms, "tolerance", f.settings.ResidualTolerance,
			"evaluations", sol.evaluations)
	}
	p := decline.ParamsFromVector(kind, sol.x)
	if err := p.Validate(); err != nil {
		return errors.Convergence("solver ended at invalid parameters: "+errors.Message(err),
			"qi", p.Qi, "di", p.Di, "b", p.B)
	}
	return nil
}

func (f *Fitter) stats(prob *problem, sol solution, scaleQ float64) decline.FitStats {
	n := len(prob.y)
	k := len(sol.x)

	fitted := make([]float64, n)
	r2 := math.NaN()
	if err := prob.model(fitted, sol.x); err == nil {
		r2 = stat.RSquaredFrom(fitted, prob.y, nil)
	}

	ssrRaw := sol.ssr * scaleQ * scaleQ
	aic := math.Inf(-1)
	if ssrRaw > 0 {
		aic = float64(n)*math.Log(ssrRaw/float64(n)) + 2*float64(k)
	}
	return decline.FitStats{
		Method:      string(f.settings.Method),
		Iterations:  sol.iterations,
		Evaluations: sol.evaluations,
		Samples:     n,
		RMSE:        math.Sqrt(ssrRaw / float64(n)),
		R2:          r2,
		AIC:         aic,
	}
}

// checkInputs fails fast on data the solver cannot use
func checkInputs(kind decline.Kind, x, y []float64) error {
	if len(x) != len(y) {
		return errors.InvalidData("abscissa and rate lengths differ", "x", len(x), "y", len(y))
	}
	if need := kind.NumParams() + 1; len(x) < need {
		return errors.InvalidData("too few points to fit model", "points", len(x), "required", need)
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) {
			return errors.InvalidData("non-finite abscissa value", "index", i)
		}
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return errors.InvalidData("non-finite rate value", "index", i)
		}
	}
	return nil
}

// problem is a least-squares objective: model(x) against observations y
type problem struct {
	y     []float64
	model func(dst, x []float64) error
}

// residuals writes model(x) - y into dst
func (p *problem) residuals(dst, x []float64) error {
	if err := p.model(dst, x); err != nil {
		return err
	}
	floats.Sub(dst, p.y)
	for _, v := range dst {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Domain("model produced a non-finite value")
		}
	}
	return nil
}

// solution is a converged point of a problem
type solution struct {
	x           []float64
	ssr         float64
	iterations  int
	evaluations int
}
