package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welldecline/domain/decline"
	"welldecline/internal/errors"
)

func TestRate_ClosedForms(t *testing.T) {
	tests := []struct {
		name string
		p    decline.Params
		t    float64
		want float64
	}{
		{"exponential at zero", decline.NewExponential(1000, 0.01), 0, 1000},
		{"exponential", decline.NewExponential(1000, 0.01), 100, 1000 * math.Exp(-1)},
		{"harmonic", decline.NewHarmonic(1000, 0.01), 100, 500},
		{"hyperbolic", decline.NewHyperbolic(1000, 0.01, 0.5), 100, 1000 / 2.25},
		{"hyperbolic b=1 matches harmonic", decline.NewHyperbolic(1000, 0.01, 1), 100, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rate(tt.p, tt.t)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRate_HyperbolicApproachesExponential(t *testing.T) {
	exp, err := Rate(decline.NewExponential(1000, 0.02), 50)
	require.NoError(t, err)
	hyp, err := Rate(decline.NewHyperbolic(1000, 0.02, 1e-6), 50)
	require.NoError(t, err)
	assert.InDelta(t, exp, hyp, 1e-3)
}

func TestRate_DomainErrors(t *testing.T) {
	// b < 0 reaches zero rate at t = 1/(|b|·di) = 100
	_, err := Rate(decline.NewHyperbolic(1000, 0.02, -0.5), 150)
	require.Error(t, err)
	assert.True(t, errors.IsDomain(err))

	_, err = Rate(decline.Params{Kind: decline.Harmonic, Qi: 1, Di: -1}, 2)
	assert.True(t, errors.IsDomain(err))

	_, err = Rate(decline.Params{Kind: decline.Hyperbolic, Qi: 1, Di: 1}, 1)
	assert.True(t, errors.IsDomain(err))

	_, err = Rate(decline.Params{Kind: decline.Kind(9), Qi: 1, Di: 1}, 1)
	assert.Error(t, err)
}

func TestRate_ToleratesRoundingAtBoundary(t *testing.T) {
	// base = 1 + (-0.5)(0.02)(100 + 1e-9) sits just below zero
	q, err := Rate(decline.NewHyperbolic(1000, 0.02, -0.5), 100+1e-9)
	require.NoError(t, err)
	assert.InDelta(t, 0, q, 1e-6)
}

func TestCurve(t *testing.T) {
	out, err := Curve(decline.NewHarmonic(10, 1), []float64{0, 1, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{10, 5, 2}, out, 1e-12)

	_, err = Curve(decline.NewHyperbolic(1, 1, -1), []float64{0, 2})
	assert.True(t, errors.IsDomain(err))
}

func TestInitialGuess(t *testing.T) {
	q := []float64{0.7, 1, 0.4}

	hyp := InitialGuess(decline.Hyperbolic, q)
	assert.Equal(t, decline.NewHyperbolic(1, InitialDecline, InitialExponent), hyp)
	assert.NoError(t, hyp.Validate())

	exp := InitialGuess(decline.Exponential, q)
	assert.Equal(t, decline.Exponential, exp.Kind)
	assert.Len(t, exp.Vector(), 2)

	assert.Equal(t, []string{"qi", "di"}, ParamNames(decline.Harmonic))
	assert.Equal(t, []string{"qi", "di", "b"}, ParamNames(decline.Hyperbolic))
}
