package excel

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"welldecline/domain/decline"
	"welldecline/domain/production"
	"welldecline/internal/analysis"
	"welldecline/internal/profiling"
	"welldecline/internal/testkit"
)

func sampleReport() *analysis.Report {
	p := decline.NewHyperbolic(1000, 0.01, 0.5)
	return &analysis.Report{
		RunID:    "run-1",
		Sequence: 1,
		Created:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Mode:     analysis.ModeRateCumulative,
		Well:     "15/9-F-14",
		Channel:  production.ChannelOil,
		Series:   testkit.Series(p, testkit.DayRange(0, 9)),
		Fit: decline.FitResult{
			Kind:       decline.Hyperbolic,
			Params:     p,
			Covariance: mat.NewSymDense(3, []float64{4, 0.1, 0, 0.1, 1e-6, 0, 0, 0, math.Inf(1)}),
			Stats:      decline.FitStats{Method: "levenberg-marquardt", Samples: 10, RMSE: 0.5, R2: 0.99, AIC: -12},
		},
		Forecast:    &decline.ForecastResult{TimeToTarget: 200, CumulativeAtTarget: 120000},
		Curve:       []analysis.CurvePoint{{Day: 0, Rate: 1000}, {Day: 1, Rate: 990.1}},
		Residuals:   &profiling.ResidualProfile{Count: 10, StdDev: 1.5, DurbinWatson: 1.9, NormalityP: math.NaN()},
		Cumulative:  9000,
		Recoverable: 200000,
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, NewReportWriter(zerolog.Nop()).WriteReport(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetCovariance, SheetSeries, SheetForecast}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	values := map[string]string{}
	for _, row := range summary {
		if len(row) == 2 {
			values[row[0]] = row[1]
		}
	}
	assert.Equal(t, "run-1", values["run_id"])
	assert.Equal(t, "Hyperbolic", values["model"])
	assert.Equal(t, "1000", values["qi"])
	assert.Equal(t, "200", values["time_to_target"])
	assert.Equal(t, "200000", values["recoverable"])
	assert.Equal(t, "1.9", values["durbin_watson"])
	assert.Equal(t, "NaN", values["residual_normality_p"])

	cov, err := f.GetRows(SheetCovariance)
	require.NoError(t, err)
	require.Len(t, cov, 4)
	assert.Equal(t, []string{"", "qi", "di", "b"}, cov[0])
	assert.Equal(t, "inf", cov[3][3])

	series, err := f.GetRows(SheetSeries)
	require.NoError(t, err)
	assert.Len(t, series, 11)
	assert.Equal(t, []string{"day", "rate", "fitted"}, series[0])

	forecast, err := f.GetRows(SheetForecast)
	require.NoError(t, err)
	assert.Len(t, forecast, 3)
}

func TestWriteComparison(t *testing.T) {
	report := sampleReport()
	cmp := &analysis.Comparison{
		RunID:   "cmp-1",
		Well:    report.Well,
		Channel: report.Channel,
		Series:  report.Series,
		Candidates: []analysis.Candidate{
			{Kind: decline.Hyperbolic, Fit: report.Fit},
			{Kind: decline.Harmonic, Err: errors.New("did not converge")},
		},
	}

	path := filepath.Join(t.TempDir(), "compare.xlsx")
	require.NoError(t, NewReportWriter(zerolog.Nop()).WriteComparison(path, cmp))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetCompare)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "cmp-1", rows[0][1])
	assert.Equal(t, "Hyperbolic", rows[5][1])
	assert.Equal(t, "Harmonic", rows[6][1])
	assert.Equal(t, "did not converge", rows[6][len(rows[6])-1])
}
