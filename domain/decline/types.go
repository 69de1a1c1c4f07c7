package decline

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"welldecline/internal/errors"
)

// Kind identifies one of the three Arps decline models
type Kind int

const (
	Exponential Kind = iota
	Harmonic
	Hyperbolic
)

// AllKinds lists every fittable model in display order
func AllKinds() []Kind {
	return []Kind{Exponential, Harmonic, Hyperbolic}
}

func (k Kind) String() string {
	switch k {
	case Exponential:
		return "Exponential"
	case Harmonic:
		return "Harmonic"
	case Hyperbolic:
		return "Hyperbolic"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// NumParams returns the number of free parameters of the model
func (k Kind) NumParams() int {
	if k == Hyperbolic {
		return 3
	}
	return 2
}

// Valid reports whether k is one of the defined kinds
func (k Kind) Valid() bool {
	return k >= Exponential && k <= Hyperbolic
}

// ParseKind accepts the model name case-insensitively
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exponential", "exp":
		return Exponential, nil
	case "harmonic", "harm":
		return Harmonic, nil
	case "hyperbolic", "hyp":
		return Hyperbolic, nil
	default:
		return 0, errors.InvalidInput(fmt.Sprintf("unknown decline model %q", s))
	}
}

// Params holds the parameters of one decline model. B is only meaningful
// for Hyperbolic and must be zero otherwise.
type Params struct {
	Kind Kind
	Qi   float64 // initial rate
	Di   float64 // initial decline rate
	B    float64 // Arps decline exponent
}

func NewExponential(qi, di float64) Params {
	return Params{Kind: Exponential, Qi: qi, Di: di}
}

func NewHarmonic(qi, di float64) Params {
	return Params{Kind: Harmonic, Qi: qi, Di: di}
}

func NewHyperbolic(qi, di, b float64) Params {
	return Params{Kind: Hyperbolic, Qi: qi, Di: di, B: b}
}

// Validate checks the per-kind invariants
func (p Params) Validate() error {
	if !p.Kind.Valid() {
		return errors.InvalidInput(fmt.Sprintf("unknown decline model %d", int(p.Kind)))
	}
	for name, v := range map[string]float64{"qi": p.Qi, "di": p.Di, "b": p.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.InvalidData(fmt.Sprintf("parameter %s is not finite", name))
		}
	}
	if p.Qi <= 0 {
		return errors.InvalidData("initial rate must be positive", "qi", p.Qi)
	}
	if p.Di <= 0 {
		return errors.InvalidData("initial decline rate must be positive", "di", p.Di)
	}
	switch p.Kind {
	case Hyperbolic:
		if p.B == 0 {
			return errors.InvalidData("hyperbolic decline exponent must be non-zero", "b", p.B)
		}
	default:
		if p.B != 0 {
			return errors.InvalidData(fmt.Sprintf("%s model takes no decline exponent", p.Kind), "b", p.B)
		}
	}
	return nil
}

// Vector returns the optimizer's view of the parameters
func (p Params) Vector() []float64 {
	if p.Kind == Hyperbolic {
		return []float64{p.Qi, p.Di, p.B}
	}
	return []float64{p.Qi, p.Di}
}

// ParamsFromVector is the inverse of Vector
func ParamsFromVector(kind Kind, x []float64) Params {
	p := Params{Kind: kind, Qi: x[0], Di: x[1]}
	if kind == Hyperbolic && len(x) > 2 {
		p.B = x[2]
	}
	return p
}

func (p Params) String() string {
	if p.Kind == Hyperbolic {
		return fmt.Sprintf("%s(qi=%.2f, di=%.6f, b=%.4f)", p.Kind, p.Qi, p.Di, p.B)
	}
	return fmt.Sprintf("%s(qi=%.2f, di=%.6f)", p.Kind, p.Qi, p.Di)
}

// FitStats summarises an optimizer run
type FitStats struct {
	Method      string
	Iterations  int
	Evaluations int
	Samples     int
	RMSE        float64 // raw rate units
	R2          float64
	AIC         float64
}

// FitResult is the outcome of a successful regression. It is not mutated
// after construction.
type FitResult struct {
	Kind       Kind
	Params     Params
	Covariance *mat.SymDense
	Stats      FitStats
}

// StdErrors returns the standard error of each parameter, in Vector order
func (r FitResult) StdErrors() []float64 {
	if r.Covariance == nil {
		return nil
	}
	n := r.Covariance.SymmetricDim()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Sqrt(r.Covariance.At(i, i))
	}
	return out
}

// ForecastQuery asks when the decline reaches TargetRate
type ForecastQuery struct {
	TargetRate float64
}

// ForecastResult answers a ForecastQuery
type ForecastResult struct {
	TimeToTarget       float64
	CumulativeAtTarget float64
}
