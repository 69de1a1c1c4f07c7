package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"welldecline/adapters/excel"
	"welldecline/domain/production"
	"welldecline/internal/analysis"
	"welldecline/internal/config"
	"welldecline/internal/fitting"
	"welldecline/internal/metrics"
	"welldecline/internal/models"
)

// options are the persistent flags; only flags the user set override config
type options struct {
	configPath string

	file    string
	sheet   string
	well    string
	channel string
	until   string

	window         int
	rejectOutliers bool
	outlierSigma   float64

	model          string
	method         string
	maxEvaluations int
	timeout        time.Duration

	targetRate float64
	horizon    int

	report      string
	metricsFile string
	logLevel    string
	logFormat   string
}

func (o *options) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configPath, "config", "", "YAML config file (default $DCA_CONFIG)")

	f.StringVar(&o.file, "file", "", "Production workbook (.xlsx) or CSV export")
	f.StringVar(&o.sheet, "sheet", "", "Sheet name (default first sheet)")
	f.StringVar(&o.well, "well", "", "Well bore name")
	f.StringVar(&o.channel, "channel", "oil", "Volume channel: oil or gas")
	f.StringVar(&o.until, "until", "", "Ignore production after this date (YYYY-MM-DD)")

	f.IntVar(&o.window, "window", 150, "Centered moving-average window in samples")
	f.BoolVar(&o.rejectOutliers, "reject-outliers", false, "Drop volumes outside the sigma band before smoothing")
	f.Float64Var(&o.outlierSigma, "outlier-sigma", 3, "Outlier band half-width in standard deviations")

	f.StringVar(&o.model, "model", "hyperbolic", "Decline model: exponential, harmonic or hyperbolic")
	f.StringVar(&o.method, "method", string(fitting.MethodLevenbergMarquardt), "Solver: levenberg-marquardt or nelder-mead")
	f.IntVar(&o.maxEvaluations, "max-evaluations", fitting.DefaultSettings().MaxEvaluations, "Model evaluation budget per fit")
	f.DurationVar(&o.timeout, "timeout", 0, "Wall-clock limit per fit (0 disables)")

	f.Float64Var(&o.targetRate, "target-rate", 0, "Forecast the time and cumulative at this rate")
	f.IntVar(&o.horizon, "horizon", 365, "Forecast curve length in days")

	f.StringVar(&o.report, "report", "", "Write an xlsx report to this path")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this path")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level")
	f.StringVar(&o.logFormat, "log-format", "console", "Log format: console or json")
}

// apply overrides cfg with every flag set on the command line
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("file") {
		cfg.Data.File = o.file
	}
	if changed("sheet") {
		cfg.Data.Sheet = o.sheet
	}
	if changed("well") {
		cfg.Data.Well = o.well
	}
	if changed("channel") {
		cfg.Data.Channel = o.channel
	}
	if changed("until") {
		cfg.Data.Until = o.until
	}
	if changed("window") {
		cfg.Preprocess.Window = o.window
	}
	if changed("reject-outliers") {
		cfg.Preprocess.RejectOutliers = o.rejectOutliers
	}
	if changed("outlier-sigma") {
		cfg.Preprocess.OutlierSigma = o.outlierSigma
	}
	if changed("model") {
		cfg.Fit.Model = o.model
	}
	if changed("method") {
		cfg.Fit.Method = o.method
	}
	if changed("max-evaluations") {
		cfg.Fit.MaxEvaluations = o.maxEvaluations
	}
	if changed("timeout") {
		cfg.Fit.Timeout = o.timeout
	}
	if changed("target-rate") {
		cfg.Forecast.TargetRate = o.targetRate
	}
	if changed("horizon") {
		cfg.Forecast.HorizonDays = o.horizon
	}
	if changed("metrics-file") {
		cfg.Runtime.MetricsFile = o.metricsFile
	}
	if changed("log-level") {
		cfg.Runtime.LogLevel = o.logLevel
	}
	if changed("log-format") {
		cfg.Runtime.LogFormat = o.logFormat
	}
}

// app is everything a command needs once flags are resolved
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	service  *analysis.Service
	writer   *excel.ReportWriter
	records  []production.Record
	report   string
}

func setup(cmd *cobra.Command, opts *options) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("DCA_CONFIG")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	opts.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Data.File == "" {
		return nil, fmt.Errorf("no production file given (--file or DCA_FILE)")
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Runtime)

	settings, err := cfg.FitSettings()
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	service := analysis.NewService(
		fitting.NewFitter(settings),
		metrics.NewRegistry(registry),
		logger,
		cfg.Runtime.Workers,
	)

	reader := excel.NewDataReader(excel.ReaderConfig{
		FilePath: cfg.Data.File,
		Sheet:    cfg.Data.Sheet,
		Columns: excel.ColumnMap{
			Well: cfg.Data.WellColumn,
			Date: cfg.Data.DateColumn,
			Oil:  cfg.Data.OilColumn,
			Gas:  cfg.Data.GasColumn,
		},
	}, logger)
	records, err := reader.ReadRecords()
	if err != nil {
		return nil, err
	}
	if cfg.Data.Well == "" {
		wells := excel.Wells(records)
		if len(wells) > 1 {
			return nil, fmt.Errorf("file holds %d wells, choose one with --well: %s", len(wells), strings.Join(wells, ", "))
		}
		cfg.Data.Well = wells[0]
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		service:  service,
		writer:   excel.NewReportWriter(logger),
		records:  records,
		report:   opts.report,
	}, nil
}

func newLogger(w io.Writer, rc config.RuntimeConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(rc.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if rc.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func (rt *app) request() (analysis.Request, error) {
	opts, err := rt.cfg.PreprocessOptions()
	if err != nil {
		return analysis.Request{}, err
	}
	kind, err := rt.cfg.Model()
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{
		Preprocess:  opts,
		Kind:        kind,
		TargetRate:  rt.cfg.Forecast.TargetRate,
		HorizonDays: rt.cfg.Forecast.HorizonDays,
	}, nil
}

func (rt *app) writeReport(report *analysis.Report) error {
	if rt.report == "" {
		return nil
	}
	return rt.writer.WriteReport(rt.report, report)
}

// finish flushes metrics when a metrics file is configured
func (rt *app) finish() error {
	path := rt.cfg.Runtime.MetricsFile
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, rt.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	rt.logger.Debug().Str("path", path).Msg("metrics written")
	return nil
}

func printReport(w io.Writer, report *analysis.Report) {
	res := report.Fit
	fmt.Fprintf(w, "Well:     %s (%s)\n", report.Well, report.Channel)
	fmt.Fprintf(w, "Model:    %s, %s\n", res.Kind, report.Mode)
	fmt.Fprintf(w, "Samples:  %d\n", res.Stats.Samples)

	se := res.StdErrors()
	for i, name := range models.ParamNames(res.Kind) {
		v := res.Params.Vector()[i]
		if i < len(se) {
			fmt.Fprintf(w, "  %-3s = %.6g ± %.3g\n", name, v, se[i])
		} else {
			fmt.Fprintf(w, "  %-3s = %.6g\n", name, v)
		}
	}
	fmt.Fprintf(w, "RMSE:     %.4g\n", res.Stats.RMSE)
	fmt.Fprintf(w, "R²:       %.4f\n", res.Stats.R2)
	fmt.Fprintf(w, "AIC:      %.2f\n", res.Stats.AIC)
	fmt.Fprintf(w, "Solver:   %s, %d iterations, %d evaluations\n", res.Stats.Method, res.Stats.Iterations, res.Stats.Evaluations)
	if r := report.Residuals; r != nil {
		fmt.Fprintf(w, "Residuals: sd %.4g, Durbin-Watson %.3f, normality p %.3g, %d outliers\n",
			r.StdDev, r.DurbinWatson, r.NormalityP, r.Outliers)
	}

	if report.Mode == analysis.ModeRateCumulative {
		fmt.Fprintf(w, "Produced: %.6g\n", report.Cumulative)
		fmt.Fprintf(w, "Recoverable volume: %.6g\n", report.Recoverable)
	}
	if report.Forecast != nil {
		fmt.Fprintf(w, "Time to target:       %.1f days\n", report.Forecast.TimeToTarget)
		fmt.Fprintf(w, "Cumulative at target: %.6g\n", report.Forecast.CumulativeAtTarget)
	}
}

func printComparison(w io.Writer, cmp *analysis.Comparison) {
	fmt.Fprintf(w, "Well: %s (%s), %d samples\n", cmp.Well, cmp.Channel, cmp.Series.Len())
	for i, c := range cmp.Candidates {
		if c.Err != nil {
			fmt.Fprintf(w, "%d. %-11s failed: %v\n", i+1, c.Kind, c.Err)
			continue
		}
		p := c.Fit.Params
		fmt.Fprintf(w, "%d. %-11s AIC %10.2f  qi=%.6g di=%.6g b=%.4g  R²=%.4f\n",
			i+1, c.Kind, c.Fit.Stats.AIC, p.Qi, p.Di, p.B, c.Fit.Stats.R2)
	}
}
