package fitting

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// covariance estimates the parameter covariance at a solution as
// inv(JᵀJ)·SSR/(n-p). When JᵀJ cannot be inverted, or there are no
// residual degrees of freedom, every entry is +Inf.
func covariance(prob *problem, sol solution) *mat.SymDense {
	n, p := len(prob.y), len(sol.x)
	cov := mat.NewSymDense(p, nil)

	if n <= p {
		fillInf(cov)
		return cov
	}

	jac := mat.NewDense(n, p, nil)
	origin := make([]float64, n)
	if err := prob.residuals(origin, sol.x); err != nil {
		fillInf(cov)
		return cov
	}
	fd.Jacobian(jac, func(y, x []float64) {
		if err := prob.residuals(y, x); err != nil {
			for i := range y {
				y[i] = math.NaN()
			}
		}
	}, sol.x, &fd.JacobianSettings{Formula: fd.Central})
	if !allFinite(jac.RawMatrix().Data) {
		fillInf(cov)
		return cov
	}

	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())

	var chol mat.Cholesky
	if !chol.Factorize(&jtj) {
		fillInf(cov)
		return cov
	}
	if err := chol.InverseTo(cov); err != nil {
		if _, ill := err.(mat.Condition); !ill {
			fillInf(cov)
			return cov
		}
	}
	cov.ScaleSym(sol.ssr/float64(n-p), cov)
	return cov
}

func fillInf(cov *mat.SymDense) {
	p := cov.SymmetricDim()
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			cov.SetSym(i, j, math.Inf(1))
		}
	}
}
