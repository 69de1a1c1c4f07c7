package fitting

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"

	"welldecline/internal/errors"
)

// nelderMead minimizes the residual sum of squares with the derivative-free
// simplex method. Out-of-domain trial points cost +Inf.
func nelderMead(ctx context.Context, prob *problem, x0 []float64, s Settings) (solution, error) {
	buf := make([]float64, len(prob.y))
	objective := optimize.Problem{
		Func: func(x []float64) float64 {
			if err := prob.residuals(buf, x); err != nil {
				return math.Inf(1)
			}
			return floats.Dot(buf, buf)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	settings := &optimize.Settings{
		MajorIterations: s.MaxIterations,
		FuncEvaluations: s.MaxEvaluations,
		Runtime:         s.Timeout,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance * s.Tolerance,
			Relative:   s.Tolerance,
			Iterations: 50,
		},
	}

	res, err := optimize.Minimize(objective, x0, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return solution{}, errors.Wrap(ctxErr, "fit cancelled")
	}
	if err != nil {
		return solution{}, errors.WithCode(errors.CodeConvergence, errors.Wrap(err, "simplex search failed"))
	}
	if statusErr := res.Status.Err(); statusErr != nil {
		return solution{}, errors.WithCode(errors.CodeConvergence,
			errors.Wrapf(statusErr, "simplex search stopped early (%s)", res.Status))
	}
	if math.IsInf(res.F, 1) {
		return solution{}, errors.Convergence("simplex search found no point inside the model domain",
			"evaluations", res.FuncEvaluations)
	}

	return solution{
		x:           res.X,
		ssr:         res.F,
		iterations:  res.MajorIterations,
		evaluations: res.FuncEvaluations,
	}, nil
}
