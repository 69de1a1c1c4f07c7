package excel

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"welldecline/domain/decline"
	"welldecline/internal/analysis"
	"welldecline/internal/models"
)

// Report sheet names
const (
	SheetSummary    = "Summary"
	SheetCovariance = "Covariance"
	SheetSeries     = "Series"
	SheetForecast   = "Forecast"
	SheetCompare    = "Compare"
)

// ReportWriter writes analysis results to xlsx workbooks
type ReportWriter struct {
	logger zerolog.Logger
}

// NewReportWriter creates a writer
func NewReportWriter(logger zerolog.Logger) *ReportWriter {
	return &ReportWriter{logger: logger.With().Str("component", "excel").Logger()}
}

// WriteReport saves a fit report: summary, covariance, the fitted series and
// the forecast curve each get their own sheet.
func (w *ReportWriter) WriteReport(path string, report *analysis.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := writeRows(f, SheetSummary, summaryRows(report)); err != nil {
		return err
	}

	if err := addSheet(f, SheetCovariance, covarianceRows(report.Fit)); err != nil {
		return err
	}

	series, err := seriesRows(report)
	if err != nil {
		return err
	}
	if err := addSheet(f, SheetSeries, series); err != nil {
		return err
	}

	if len(report.Curve) > 0 {
		rows := [][]interface{}{{"day", "rate"}}
		for _, p := range report.Curve {
			rows = append(rows, []interface{}{p.Day, cellValue(p.Rate)})
		}
		if err := addSheet(f, SheetForecast, rows); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	w.logger.Info().Str("path", path).Str("run_id", report.RunID).Msg("report written")
	return nil
}

// WriteComparison saves the model ranking of a comparison
func (w *ReportWriter) WriteComparison(path string, cmp *analysis.Comparison) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetCompare); err != nil {
		return fmt.Errorf("failed to name compare sheet: %w", err)
	}
	rows := [][]interface{}{
		{"run_id", cmp.RunID},
		{"well", cmp.Well},
		{"channel", string(cmp.Channel)},
		{"samples", cmp.Series.Len()},
		{"rank", "model", "qi", "di", "b", "rmse", "r2", "aic", "evaluations", "error"},
	}
	for i, c := range cmp.Candidates {
		if c.Err != nil {
			rows = append(rows, []interface{}{i + 1, c.Kind.String(), "", "", "", "", "", "", "", c.Err.Error()})
			continue
		}
		p, st := c.Fit.Params, c.Fit.Stats
		rows = append(rows, []interface{}{
			i + 1, c.Kind.String(),
			cellValue(p.Qi), cellValue(p.Di), cellValue(p.B),
			cellValue(st.RMSE), cellValue(st.R2), cellValue(st.AIC), st.Evaluations, "",
		})
	}
	if err := writeRows(f, SheetCompare, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save comparison %s: %w", path, err)
	}
	w.logger.Info().Str("path", path).Str("run_id", cmp.RunID).Msg("comparison written")
	return nil
}

func summaryRows(report *analysis.Report) [][]interface{} {
	p, st := report.Fit.Params, report.Fit.Stats
	rows := [][]interface{}{
		{"run_id", report.RunID},
		{"created", report.Created.Format("2006-01-02 15:04:05")},
		{"well", report.Well},
		{"channel", string(report.Channel)},
		{"mode", string(report.Mode)},
		{"model", report.Fit.Kind.String()},
		{"qi", cellValue(p.Qi)},
		{"di", cellValue(p.Di)},
		{"b", cellValue(p.B)},
		{"samples", st.Samples},
		{"method", st.Method},
		{"iterations", st.Iterations},
		{"evaluations", st.Evaluations},
		{"rmse", cellValue(st.RMSE)},
		{"r2", cellValue(st.R2)},
		{"aic", cellValue(st.AIC)},
	}
	if report.Forecast != nil {
		rows = append(rows,
			[]interface{}{"time_to_target", cellValue(report.Forecast.TimeToTarget)},
			[]interface{}{"cumulative_at_target", cellValue(report.Forecast.CumulativeAtTarget)},
		)
	}
	if r := report.Residuals; r != nil {
		rows = append(rows,
			[]interface{}{"residual_std_dev", cellValue(r.StdDev)},
			[]interface{}{"residual_skewness", cellValue(r.Skewness)},
			[]interface{}{"residual_kurtosis", cellValue(r.Kurtosis)},
			[]interface{}{"residual_normality_p", cellValue(r.NormalityP)},
			[]interface{}{"durbin_watson", cellValue(r.DurbinWatson)},
			[]interface{}{"residual_outliers", r.Outliers},
		)
	}
	if report.Mode == analysis.ModeRateCumulative {
		rows = append(rows,
			[]interface{}{"cumulative", cellValue(report.Cumulative)},
			[]interface{}{"recoverable", cellValue(report.Recoverable)},
		)
	}
	return rows
}

func covarianceRows(res decline.FitResult) [][]interface{} {
	names := models.ParamNames(res.Kind)
	header := []interface{}{""}
	for _, n := range names {
		header = append(header, n)
	}
	rows := [][]interface{}{header}
	if res.Covariance == nil {
		return rows
	}
	for i, n := range names {
		row := []interface{}{n}
		for j := range names {
			row = append(row, cellValue(res.Covariance.At(i, j)))
		}
		rows = append(rows, row)
	}
	return rows
}

func seriesRows(report *analysis.Report) ([][]interface{}, error) {
	fitted, err := models.Curve(report.Fit.Params, report.Series.Days())
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate fitted curve: %w", err)
	}
	rows := [][]interface{}{{"day", "rate", "fitted"}}
	for i, s := range report.Series.Samples {
		rows = append(rows, []interface{}{s.Day, cellValue(s.Rate), cellValue(fitted[i])})
	}
	return rows, nil
}

func addSheet(f *excelize.File, sheet string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// cellValue keeps non-finite numbers readable; Excel has no Inf or NaN
func cellValue(v float64) interface{} {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	default:
		return v
	}
}
