// Package metrics holds the Prometheus collectors for decline fitting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fit outcome labels
const (
	StatusOK          = "ok"
	StatusInvalidData = "invalid_data"
	StatusConvergence = "convergence"
	StatusDomain      = "domain"
	StatusError       = "error"
)

// Registry holds all fitting metrics
type Registry struct {
	// Fit outcome metrics
	Fits        *prometheus.CounterVec
	FitDuration *prometheus.HistogramVec
	Evaluations *prometheus.HistogramVec

	// Inversion metrics
	Forecasts *prometheus.CounterVec

	// Ingestion metrics
	RecordsRead prometheus.Counter
	SamplesKept prometheus.Gauge
}

// NewRegistry creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		Fits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_fits_total",
				Help: "Total number of decline fits by model and outcome",
			},
			[]string{"model", "status"},
		),

		FitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dca_fit_duration_seconds",
				Help:    "Wall-clock duration of a single decline fit",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
			},
			[]string{"model"},
		),

		Evaluations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dca_fit_evaluations",
				Help:    "Model evaluations spent by successful fits",
				Buckets: prometheus.ExponentialBuckets(8, 2, 10),
			},
			[]string{"model"},
		),

		Forecasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dca_forecasts_total",
				Help: "Total number of forecast queries by model and outcome",
			},
			[]string{"model", "status"},
		),

		RecordsRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dca_records_read_total",
				Help: "Production records handed to the preprocessor",
			},
		),

		SamplesKept: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dca_samples_kept",
				Help: "Samples left after the most recent preprocessing run",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.Fits,
			r.FitDuration,
			r.Evaluations,
			r.Forecasts,
			r.RecordsRead,
			r.SamplesKept,
		)
	}
	return r
}

// RecordFit records the outcome of one fit
func (r *Registry) RecordFit(model, status string, elapsed time.Duration, evaluations int) {
	r.Fits.WithLabelValues(model, status).Inc()
	r.FitDuration.WithLabelValues(model).Observe(elapsed.Seconds())
	if status == StatusOK {
		r.Evaluations.WithLabelValues(model).Observe(float64(evaluations))
	}
}

// RecordForecast records the outcome of one forecast query
func (r *Registry) RecordForecast(model, status string) {
	r.Forecasts.WithLabelValues(model, status).Inc()
}

// RecordIngest records a preprocessing run
func (r *Registry) RecordIngest(records, kept int) {
	r.RecordsRead.Add(float64(records))
	r.SamplesKept.Set(float64(kept))
}
