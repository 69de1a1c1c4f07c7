package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RecordFit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.RecordFit("hyperbolic", StatusOK, 20*time.Millisecond, 120)
	m.RecordFit("hyperbolic", StatusOK, 10*time.Millisecond, 80)
	m.RecordFit("exponential", StatusConvergence, time.Millisecond, 50)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Fits.WithLabelValues("hyperbolic", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fits.WithLabelValues("exponential", StatusConvergence)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.FitDuration))
	// failed fits do not observe evaluations
	assert.Equal(t, 1, testutil.CollectAndCount(m.Evaluations))

	expected := `
# HELP dca_fits_total Total number of decline fits by model and outcome
# TYPE dca_fits_total counter
dca_fits_total{model="exponential",status="convergence"} 1
dca_fits_total{model="hyperbolic",status="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dca_fits_total"))
}

func TestRegistry_RecordIngestAndForecast(t *testing.T) {
	m := NewRegistry(nil)

	m.RecordIngest(900, 700)
	m.RecordIngest(100, 60)
	m.RecordForecast("harmonic", StatusDomain)

	assert.Equal(t, 1000.0, testutil.ToFloat64(m.RecordsRead))
	assert.Equal(t, 60.0, testutil.ToFloat64(m.SamplesKept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Forecasts.WithLabelValues("harmonic", StatusDomain)))
}

func TestNewRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRegistry(reg)
	assert.Panics(t, func() { NewRegistry(reg) })
}
