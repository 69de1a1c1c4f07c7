package fitting

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"welldecline/internal/errors"
)

const (
	initialDamping = 1e-3
	minDamping     = 1e-12
	maxDamping     = 1e16
	// tinySSR is treated as an exact fit
	tinySSR = 1e-26
)

// levenbergMarquardt minimizes the residual sum of squares with a
// Marquardt-scaled damped Gauss-Newton iteration. The Jacobian comes from
// forward finite differences; each probe counts against MaxEvaluations.
func levenbergMarquardt(ctx context.Context, prob *problem, x0 []float64, s Settings) (solution, error) {
	n, p := len(prob.y), len(x0)

	var deadline time.Time
	if s.Timeout > 0 {
		deadline = time.Now().Add(s.Timeout)
	}

	x := append([]float64(nil), x0...)
	r := make([]float64, n)
	if err := prob.residuals(r, x); err != nil {
		return solution{}, errors.WithCode(errors.CodeConvergence, errors.Wrap(err, "initial guess is outside the model domain"))
	}
	evals := 1
	ssr := floats.Dot(r, r)

	jac := mat.NewDense(n, p, nil)
	var jtj mat.SymDense
	grad := mat.NewVecDense(p, nil)
	probe := func(y, xx []float64) {
		if err := prob.residuals(y, xx); err != nil {
			for i := range y {
				y[i] = math.NaN()
			}
		}
	}

	xn := make([]float64, p)
	rn := make([]float64, n)
	lambda := initialDamping
	converged := false
	iterations := 0

	for iterations < s.MaxIterations && !converged {
		if err := ctx.Err(); err != nil {
			return solution{}, errors.Wrap(err, "fit cancelled")
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return solution{}, errors.Convergence("solver timed out",
				"timeout_seconds", s.Timeout.Seconds(), "iterations", iterations)
		}
		if evals+p > s.MaxEvaluations {
			break
		}

		fd.Jacobian(jac, probe, x, &fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: r,
		})
		evals += p
		iterations++
		if !allFinite(jac.RawMatrix().Data) {
			return solution{}, errors.Convergence("jacobian is not finite at the current estimate",
				"iterations", iterations)
		}

		jtj.Reset()
		jtj.SymOuterK(1, jac.T())
		grad.MulVec(jac.T(), mat.NewVecDense(n, r))
		if mat.Norm(grad, math.Inf(1)) <= s.Tolerance*s.Tolerance {
			converged = true
			break
		}

		improved := false
		for evals < s.MaxEvaluations && lambda <= maxDamping {
			step, ok := dampedStep(&jtj, grad, lambda)
			if !ok {
				lambda *= 10
				continue
			}
			floats.SubTo(xn, x, step)
			err := prob.residuals(rn, xn)
			evals++
			if err == nil {
				if ssrn := floats.Dot(rn, rn); ssrn < ssr {
					reduction := (ssr - ssrn) / ssr
					small := floats.Norm(step, 2) <= s.Tolerance*(floats.Norm(x, 2)+s.Tolerance)
					copy(x, xn)
					copy(r, rn)
					ssr = ssrn
					lambda = math.Max(lambda/10, minDamping)
					improved = true
					converged = reduction <= s.Tolerance || small || ssr <= tinySSR
					break
				}
			}
			lambda *= 10
		}

		if !improved {
			// no damping level reduces the cost: x is a local minimum
			converged = lambda > maxDamping
			if !converged {
				break
			}
		}
	}

	if !converged {
		return solution{}, errors.Convergence("solver budget exhausted before convergence",
			"iterations", iterations, "evaluations", evals,
			"max_iterations", s.MaxIterations, "max_evaluations", s.MaxEvaluations)
	}
	return solution{x: x, ssr: ssr, iterations: iterations, evaluations: evals}, nil
}

// dampedStep solves (JᵀJ + λ·diag(JᵀJ))·δ = Jᵀr
func dampedStep(jtj *mat.SymDense, grad *mat.VecDense, lambda float64) ([]float64, bool) {
	p := jtj.SymmetricDim()
	a := mat.NewSymDense(p, nil)
	a.CopySym(jtj)
	for i := 0; i < p; i++ {
		d := math.Max(jtj.At(i, i), 1e-12)
		a.SetSym(i, i, jtj.At(i, i)+lambda*d)
	}

	var chol mat.Cholesky
	if !chol.Factorize(a) {
		return nil, false
	}
	var delta mat.VecDense
	if err := chol.SolveVecTo(&delta, grad); err != nil {
		if _, ill := err.(mat.Condition); !ill {
			return nil, false
		}
	}
	step := make([]float64, p)
	for i := range step {
		step[i] = delta.AtVec(i)
	}
	if !allFinite(step) {
		return nil, false
	}
	return step, true
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
