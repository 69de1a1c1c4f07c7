package fitting

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"welldecline/domain/decline"
	"welldecline/domain/production"
	"welldecline/internal/errors"
	"welldecline/internal/inversion"
	"welldecline/internal/normalize"
	"welldecline/internal/testkit"
)

func normalized(t *testing.T, ts production.TimeSeries) normalize.Series {
	t.Helper()
	s, err := normalize.Normalize(ts)
	require.NoError(t, err)
	return s
}

func TestFit_RecoversExponential(t *testing.T) {
	ts := testkit.Series(decline.NewExponential(1000, 0.01), testkit.DayRange(0, 100))

	res, err := NewFitter(DefaultSettings()).Fit(context.Background(), decline.Exponential, normalized(t, ts))
	require.NoError(t, err)

	assert.Equal(t, decline.Exponential, res.Kind)
	assert.InEpsilon(t, 1000, res.Params.Qi, 0.01)
	assert.InEpsilon(t, 0.01, res.Params.Di, 0.05)
	assert.Zero(t, res.Params.B)
	assert.Equal(t, 101, res.Stats.Samples)
	assert.Equal(t, string(MethodLevenbergMarquardt), res.Stats.Method)
	assert.Greater(t, res.Stats.R2, 0.999)
	assert.Less(t, res.Stats.RMSE, 1e-3)
}

func TestFit_RecoversHarmonic(t *testing.T) {
	ts := testkit.Series(decline.NewHarmonic(2500, 0.03), testkit.DayRange(0, 200))

	res, err := NewFitter(DefaultSettings()).Fit(context.Background(), decline.Harmonic, normalized(t, ts))
	require.NoError(t, err)
	assert.InEpsilon(t, 2500, res.Params.Qi, 0.01)
	assert.InEpsilon(t, 0.03, res.Params.Di, 0.05)
}

func TestFit_RecoversHyperbolic(t *testing.T) {
	ts := testkit.Series(decline.NewHyperbolic(1000, 0.02, 0.6), testkit.DayRange(0, 300))

	res, err := NewFitter(DefaultSettings()).Fit(context.Background(), decline.Hyperbolic, normalized(t, ts))
	require.NoError(t, err)
	assert.InEpsilon(t, 1000, res.Params.Qi, 0.01)
	assert.InEpsilon(t, 0.02, res.Params.Di, 0.05)
	assert.InEpsilon(t, 0.6, res.Params.B, 0.05)
	assert.NoError(t, res.Params.Validate())
}

func TestFit_NelderMeadRecoversExponential(t *testing.T) {
	ts := testkit.Series(decline.NewExponential(1000, 0.01), testkit.DayRange(0, 100))
	settings := DefaultSettings()
	settings.Method = MethodNelderMead
	settings.MaxIterations = 5000
	settings.MaxEvaluations = 20000

	res, err := NewFitter(settings).Fit(context.Background(), decline.Exponential, normalized(t, ts))
	require.NoError(t, err)
	assert.InEpsilon(t, 1000, res.Params.Qi, 0.01)
	assert.InEpsilon(t, 0.01, res.Params.Di, 0.05)
	assert.Equal(t, string(MethodNelderMead), res.Stats.Method)
}

func TestFit_ScaleInvariance(t *testing.T) {
	base := testkit.Series(decline.NewExponential(1000, 0.01), testkit.DayRange(0, 100))
	fitter := NewFitter(DefaultSettings())

	ref, err := fitter.Fit(context.Background(), decline.Exponential, normalized(t, base))
	require.NoError(t, err)

	for _, k := range []int{2, 7, 30} {
		scaled, err := fitter.Fit(context.Background(), decline.Exponential, normalized(t, base.Scale(k)))
		require.NoError(t, err)
		assert.InEpsilon(t, ref.Params.Di, scaled.Params.Di*float64(k), 1e-6, "k=%d", k)
		assert.InEpsilon(t, ref.Params.Qi, scaled.Params.Qi, 1e-6, "k=%d", k)
	}
}

func TestFit_ConvergenceFailureOnNoise(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxEvaluations = 50
	fitter := NewFitter(settings)

	const trials = 20
	failures := 0
	for seed := int64(1); seed <= trials; seed++ {
		_, err := fitter.Fit(context.Background(), decline.Hyperbolic, normalized(t, testkit.UniformNoise(100, seed)))
		if err != nil {
			require.True(t, errors.IsConvergence(err), "seed %d: unexpected error %v", seed, err)
			failures++
		}
	}
	assert.Greater(t, failures, trials/2)
}

func TestFit_GrowingRateIsConvergenceFailure(t *testing.T) {
	samples := make([]production.Sample, 100)
	for i := range samples {
		samples[i] = production.Sample{Day: i, Rate: 100 * math.Exp(0.01*float64(i))}
	}

	_, err := NewFitter(DefaultSettings()).Fit(context.Background(), decline.Exponential,
		normalized(t, production.TimeSeries{Samples: samples}))
	require.Error(t, err)
	assert.True(t, errors.IsConvergence(err), "got %v", err)
	assert.False(t, errors.IsInvalidData(err))
	assert.Equal(t, errors.CodeConvergence, errors.GetCode(err))
	assert.Equal(t, 1, strings.Count(err.Error(), "initial decline rate must be positive"), err.Error())
}

func TestFit_BudgetExhausted(t *testing.T) {
	ts := testkit.Series(decline.NewHyperbolic(1000, 0.02, 0.6), testkit.DayRange(0, 300))
	settings := DefaultSettings()
	settings.MaxEvaluations = 5

	_, err := NewFitter(settings).Fit(context.Background(), decline.Hyperbolic, normalized(t, ts))
	require.Error(t, err)
	assert.True(t, errors.IsConvergence(err))
}

func TestFit_RejectsNonFiniteInput(t *testing.T) {
	fitter := NewFitter(DefaultSettings())
	tests := []struct {
		name string
		s    normalize.Series
	}{
		{"nan rate", normalize.Series{T: []float64{0, 0.5, 1}, Q: []float64{1, math.NaN(), 0.5}, ScaleT: 1, ScaleQ: 1}},
		{"inf time", normalize.Series{T: []float64{0, math.Inf(1), 1}, Q: []float64{1, 0.7, 0.5}, ScaleT: 1, ScaleQ: 1}},
		{"length mismatch", normalize.Series{T: []float64{0, 1}, Q: []float64{1, 0.7, 0.5}, ScaleT: 1, ScaleQ: 1}},
		{"too few points", normalize.Series{T: []float64{0, 0.5, 1}, Q: []float64{1, 0.7, 0.5}, ScaleT: 1, ScaleQ: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fitter.Fit(context.Background(), decline.Hyperbolic, tt.s)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidData(err), "got %v", err)
		})
	}

	_, err := fitter.Fit(context.Background(), decline.Kind(5), normalize.Series{})
	assert.Error(t, err)
}

func TestFit_Cancelled(t *testing.T) {
	ts := testkit.Series(decline.NewHyperbolic(1000, 0.02, 0.6), testkit.DayRange(0, 300))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFitter(DefaultSettings()).Fit(ctx, decline.Hyperbolic, normalized(t, ts))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFit_CovarianceOnNoisyData(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	ts := testkit.Series(decline.NewExponential(1000, 0.01), testkit.DayRange(0, 200))
	for i := range ts.Samples {
		ts.Samples[i].Rate *= 1 + 0.02*rng.NormFloat64()
	}

	res, err := NewFitter(DefaultSettings()).Fit(context.Background(), decline.Exponential, normalized(t, ts))
	require.NoError(t, err)
	require.NotNil(t, res.Covariance)

	se := res.StdErrors()
	require.Len(t, se, 2)
	for i, v := range se {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "param %d", i)
		assert.Greater(t, v, 0.0, "param %d", i)
	}
	// the truth sits within a few standard errors of the estimate
	assert.Less(t, math.Abs(res.Params.Qi-1000), 5*se[0])
	assert.Less(t, math.Abs(res.Params.Di-0.01), 5*se[1])
}

func TestFitCumulative_RecoversHyperbolic(t *testing.T) {
	const qi, di, b = 1000.0, 0.01, 0.5
	const gMax = 150000.0

	n := 400
	cs := normalize.CumulativeSeries{G: make([]float64, n), Q: make([]float64, n), ScaleG: gMax, ScaleQ: qi}
	for i := 0; i < n; i++ {
		g := gMax * float64(i) / float64(n-1)
		q, err := inversion.RateFromCumulative(g, qi, di, b)
		require.NoError(t, err)
		cs.G[i] = g / gMax
		cs.Q[i] = q / qi
	}

	res, err := NewFitter(DefaultSettings()).FitCumulative(context.Background(), cs)
	require.NoError(t, err)
	assert.Equal(t, decline.Hyperbolic, res.Kind)
	assert.InEpsilon(t, qi, res.Params.Qi, 0.01)
	assert.InEpsilon(t, di, res.Params.Di, 0.05)
	assert.InEpsilon(t, b, res.Params.B, 0.05)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodLevenbergMarquardt, m)

	m, err = ParseMethod("NM")
	require.NoError(t, err)
	assert.Equal(t, MethodNelderMead, m)

	_, err = ParseMethod("bfgs")
	assert.Error(t, err)
}

func TestNewFitter_FillsDefaults(t *testing.T) {
	f := NewFitter(Settings{MaxEvaluations: 77})
	s := f.Settings()
	assert.Equal(t, 77, s.MaxEvaluations)
	assert.Equal(t, DefaultSettings().MaxIterations, s.MaxIterations)
	assert.Equal(t, MethodLevenbergMarquardt, s.Method)
}
