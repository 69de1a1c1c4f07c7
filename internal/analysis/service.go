// Package analysis runs the decline workflow for one well: preprocess,
// normalize, fit, and answer forecast and EUR queries.
package analysis

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"welldecline/domain/decline"
	"welldecline/domain/production"
	"welldecline/internal/errors"
	"welldecline/internal/fitting"
	"welldecline/internal/inversion"
	"welldecline/internal/metrics"
	"welldecline/internal/models"
	"welldecline/internal/normalize"
	"welldecline/internal/preprocess"
	"welldecline/internal/profiling"
)

// Mode names the relation a report was fitted on
type Mode string

const (
	ModeRateTime       Mode = "rate-time"
	ModeRateCumulative Mode = "rate-cumulative"
)

// Request describes one analysis of a single well and channel
type Request struct {
	Preprocess  preprocess.Options
	Kind        decline.Kind // ignored by EUR, which always fits the hyperbolic relation
	TargetRate  float64      // > 0 answers a forecast query
	HorizonDays int          // > 0 adds a forecast curve
}

// CurvePoint is one day of a forecast curve
type CurvePoint struct {
	Day  int     `json:"day"`
	Rate float64 `json:"rate"`
}

// Report is the outcome of one analysis run
type Report struct {
	RunID    string             `json:"run_id"`
	Sequence int64              `json:"sequence"`
	Created  time.Time          `json:"created"`
	Mode     Mode               `json:"mode"`
	Well     string             `json:"well"`
	Channel  production.Channel `json:"channel"`

	Series   production.TimeSeries   `json:"-"`
	Fit      decline.FitResult       `json:"-"`
	Forecast *decline.ForecastResult `json:"forecast,omitempty"`
	Curve    []CurvePoint            `json:"curve,omitempty"`

	Residuals *profiling.ResidualProfile `json:"residuals,omitempty"`

	// Set in rate-cumulative mode only
	Cumulative  float64 `json:"cumulative,omitempty"`  // produced by the last retained sample
	Recoverable float64 `json:"recoverable,omitempty"` // +Inf when the decline never exhausts
}

// Candidate is one model's result within a comparison
type Candidate struct {
	Kind decline.Kind
	Fit  decline.FitResult
	Err  error
}

// Comparison ranks every decline model fitted to the same series
type Comparison struct {
	RunID   string
	Created time.Time
	Well    string
	Channel production.Channel
	Series  production.TimeSeries

	// Successful fits by ascending AIC, then failures in display order
	Candidates []Candidate
}

// Best returns the lowest-AIC successful fit
func (c *Comparison) Best() (Candidate, bool) {
	if len(c.Candidates) == 0 || c.Candidates[0].Err != nil {
		return Candidate{}, false
	}
	return c.Candidates[0], true
}

// Service runs analyses. It is safe for concurrent use.
type Service struct {
	fitter  *fitting.Fitter
	metrics *metrics.Registry
	logger  zerolog.Logger
	workers int64
	seq     Sequence
}

// NewService creates a service. A nil registry records into unregistered
// collectors; workers bounds concurrent fits in Compare.
func NewService(fitter *fitting.Fitter, m *metrics.Registry, logger zerolog.Logger, workers int) *Service {
	if m == nil {
		m = metrics.NewRegistry(nil)
	}
	if workers < 1 {
		workers = 1
	}
	return &Service{
		fitter:  fitter,
		metrics: m,
		logger:  logger.With().Str("component", "analysis").Logger(),
		workers: int64(workers),
	}
}

// Prepare turns raw records into a fit-ready series
func (s *Service) Prepare(records []production.Record, opts preprocess.Options) (production.TimeSeries, error) {
	ts, err := preprocess.Preprocess(records, opts)
	if err != nil {
		s.logger.Warn().Err(err).Str("well", opts.Well).Int("records", len(records)).Msg("preprocessing failed")
		return production.TimeSeries{}, err
	}
	s.metrics.RecordIngest(len(records), ts.Len())
	s.logger.Debug().
		Str("well", opts.Well).
		Str("channel", string(opts.Channel)).
		Int("records", len(records)).
		Int("samples", ts.Len()).
		Int("window", opts.Window).
		Msg("series prepared")
	return ts, nil
}

// FitSeries normalizes a prepared series and fits one model to it
func (s *Service) FitSeries(ctx context.Context, kind decline.Kind, ts production.TimeSeries) (decline.FitResult, error) {
	res, _, err := s.fitSeries(ctx, kind, ts)
	return res, err
}

func (s *Service) fitSeries(ctx context.Context, kind decline.Kind, ts production.TimeSeries) (decline.FitResult, int64, error) {
	seq := s.seq.Next()
	start := time.Now()

	norm, err := normalize.Normalize(ts)
	var res decline.FitResult
	if err == nil {
		res, err = s.fitter.Fit(ctx, kind, norm)
	}
	s.observeFit(seq, kind, res, err, time.Since(start))
	return res, seq, err
}

func (s *Service) observeFit(seq int64, kind decline.Kind, res decline.FitResult, err error, elapsed time.Duration) {
	model := label(kind)
	s.metrics.RecordFit(model, status(err), elapsed, res.Stats.Evaluations)
	if err != nil {
		s.logger.Warn().Err(err).Int64("seq", seq).Str("model", model).Dur("elapsed", elapsed).Msg("fit failed")
		return
	}
	s.logger.Info().
		Int64("seq", seq).
		Str("model", model).
		Float64("qi", res.Params.Qi).
		Float64("di", res.Params.Di).
		Float64("b", res.Params.B).
		Float64("rmse", res.Stats.RMSE).
		Float64("r2", res.Stats.R2).
		Int("evaluations", res.Stats.Evaluations).
		Dur("elapsed", elapsed).
		Msg("fit converged")
}

// Forecast answers a target-rate query (when target > 0) and evaluates the
// fitted curve over days 0..horizon (when horizon > 0).
func (s *Service) Forecast(p decline.Params, target float64, horizon int) (*decline.ForecastResult, []CurvePoint, error) {
	var result *decline.ForecastResult
	if target > 0 {
		fr, err := inversion.Forecast(p, decline.ForecastQuery{TargetRate: target})
		s.metrics.RecordForecast(label(p.Kind), status(err))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "forecast to rate %g", target)
		}
		result = &fr
	}

	if horizon <= 0 {
		return result, nil, nil
	}
	days := make([]float64, horizon+1)
	for i := range days {
		days[i] = float64(i)
	}
	rates, err := models.Curve(p, days)
	if err != nil {
		return nil, nil, errors.Wrap(err, "forecast curve")
	}
	curve := make([]CurvePoint, len(rates))
	for i, q := range rates {
		curve[i] = CurvePoint{Day: i, Rate: q}
	}
	return result, curve, nil
}

// Analyze fits the requested rate-vs-time model to one well's history
func (s *Service) Analyze(ctx context.Context, records []production.Record, req Request) (*Report, error) {
	ts, err := s.Prepare(records, req.Preprocess)
	if err != nil {
		return nil, err
	}
	res, seq, err := s.fitSeries(ctx, req.Kind, ts)
	if err != nil {
		return nil, err
	}

	report := s.newReport(ModeRateTime, seq, req, ts, res)
	if fitted, err := models.Curve(res.Params, ts.Days()); err == nil {
		report.Residuals = s.profile(seq, ts.Rates(), fitted)
	}
	report.Forecast, report.Curve, err = s.Forecast(res.Params, req.TargetRate, req.HorizonDays)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// EUR fits the hyperbolic rate-vs-cumulative relation and reports the
// recoverable volume alongside any forecast query.
func (s *Service) EUR(ctx context.Context, records []production.Record, req Request) (*Report, error) {
	ts, err := s.Prepare(records, req.Preprocess)
	if err != nil {
		return nil, err
	}

	seq := s.seq.Next()
	start := time.Now()
	cs, err := normalize.NormalizeCumulative(ts)
	var res decline.FitResult
	if err == nil {
		res, err = s.fitter.FitCumulative(ctx, cs)
	}
	s.observeFit(seq, decline.Hyperbolic, res, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	report := s.newReport(ModeRateCumulative, seq, req, ts, res)
	report.Cumulative = cs.ScaleG
	if fitted, err := cumulativeCurve(res.Params, cs); err == nil {
		report.Residuals = s.profile(seq, ts.Rates(), fitted)
	}
	report.Recoverable, err = inversion.RecoverableLimit(res.Params.Qi, res.Params.Di, res.Params.B)
	if err != nil {
		return nil, errors.Wrap(err, "recoverable volume")
	}
	report.Forecast, report.Curve, err = s.Forecast(res.Params, req.TargetRate, req.HorizonDays)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Compare fits every decline model to the same series concurrently and
// ranks them by AIC. Individual model failures are kept in the result; an
// error is returned only when no model fits or ctx ends.
func (s *Service) Compare(ctx context.Context, records []production.Record, req Request) (*Comparison, error) {
	ts, err := s.Prepare(records, req.Preprocess)
	if err != nil {
		return nil, err
	}

	kinds := decline.AllKinds()
	candidates := make([]Candidate, len(kinds))
	sem := semaphore.NewWeighted(s.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			res, _, err := s.fitSeries(gctx, kind, ts)
			candidates[i] = Candidate{Kind: kind, Fit: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "compare models")
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "compare models")
	}

	rank(candidates)
	cmp := &Comparison{
		RunID:      uuid.NewString(),
		Created:    time.Now().UTC(),
		Well:       req.Preprocess.Well,
		Channel:    req.Preprocess.Channel,
		Series:     ts,
		Candidates: candidates,
	}
	if _, ok := cmp.Best(); !ok {
		return cmp, errors.Wrap(candidates[0].Err, "no decline model could be fitted")
	}
	s.logger.Info().
		Str("run_id", cmp.RunID).
		Str("best", label(candidates[0].Kind)).
		Float64("aic", candidates[0].Fit.Stats.AIC).
		Msg("models compared")
	return cmp, nil
}

// profile describes the fit residuals; a profile that cannot be computed is
// logged and left out of the report.
func (s *Service) profile(seq int64, observed, fitted []float64) *profiling.ResidualProfile {
	p, err := profiling.Profile(observed, fitted)
	if err != nil {
		s.logger.Debug().Err(err).Int64("seq", seq).Msg("residual profile skipped")
		return nil
	}
	if !p.IsNormal && p.DurbinWatson < 1 {
		s.logger.Warn().
			Int64("seq", seq).
			Float64("durbin_watson", p.DurbinWatson).
			Float64("normality_p", p.NormalityP).
			Msg("residuals are autocorrelated, the model may be misspecified")
	}
	return &p
}

// cumulativeCurve evaluates the fitted rate at each observed cumulative
func cumulativeCurve(p decline.Params, cs normalize.CumulativeSeries) ([]float64, error) {
	out := make([]float64, len(cs.G))
	for i, g := range cs.G {
		q, err := inversion.RateFromCumulative(g*cs.ScaleG, p.Qi, p.Di, p.B)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func (s *Service) newReport(mode Mode, seq int64, req Request, ts production.TimeSeries, res decline.FitResult) *Report {
	channel := req.Preprocess.Channel
	if channel == "" {
		channel = production.ChannelOil
	}
	return &Report{
		RunID:    uuid.NewString(),
		Sequence: seq,
		Created:  time.Now().UTC(),
		Mode:     mode,
		Well:     req.Preprocess.Well,
		Channel:  channel,
		Series:   ts,
		Fit:      res,
	}
}

// rank orders successful fits by AIC ahead of failures
func rank(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if (c[i].Err == nil) != (c[j].Err == nil) {
			return c[i].Err == nil
		}
		if c[i].Err != nil {
			return false
		}
		ai, aj := c[i].Fit.Stats.AIC, c[j].Fit.Stats.AIC
		if math.IsNaN(aj) {
			return !math.IsNaN(ai)
		}
		return ai < aj
	})
}

func label(kind decline.Kind) string {
	return strings.ToLower(kind.String())
}

func status(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.IsInvalidData(err):
		return metrics.StatusInvalidData
	case errors.IsConvergence(err):
		return metrics.StatusConvergence
	case errors.IsDomain(err):
		return metrics.StatusDomain
	default:
		return metrics.StatusError
	}
}
