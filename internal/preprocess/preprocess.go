package preprocess

import (
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"welldecline/domain/production"
	"welldecline/internal/errors"
)

// MinSamples is the smallest series that can constrain a 2-3 parameter model
const MinSamples = 3

const day = 24 * time.Hour

// Options controls how a raw production history becomes a fit-ready series
type Options struct {
	Well           string             // empty keeps every row
	Channel        production.Channel // volume column
	Window         int                // centered moving-average width, >= 1
	RejectOutliers bool
	OutlierSigma   float64   // band half-width in standard deviations (default 3)
	Until          time.Time // zero keeps the whole history
}

// DefaultOptions mirrors the oil-rate settings of the interactive tool
func DefaultOptions() Options {
	return Options{
		Channel:      production.ChannelOil,
		Window:       150,
		OutlierSigma: 3,
	}
}

type observation struct {
	date time.Time
	rate float64
}

// Preprocess selects, cleans and smooths one well's production history.
// Steps run in a fixed order: selection and positivity filter, optional
// sigma-band outlier rejection, day anchoring, centered smoothing with edge
// trimming, and a final non-finite sweep.
func Preprocess(records []production.Record, opts Options) (production.TimeSeries, error) {
	if opts.Window < 1 {
		return production.TimeSeries{}, errors.InvalidData("smoothing window must be at least 1", "window", opts.Window)
	}
	if opts.Channel == "" {
		opts.Channel = production.ChannelOil
	}

	obs, err := selectRows(records, opts)
	if err != nil {
		return production.TimeSeries{}, err
	}
	if len(obs) == 0 {
		return production.TimeSeries{}, errors.InvalidData(
			fmt.Sprintf("no positive %s volumes for well %q", opts.Channel, opts.Well))
	}

	if opts.RejectOutliers {
		obs, err = rejectOutliers(obs, opts.OutlierSigma)
		if err != nil {
			return production.TimeSeries{}, err
		}
	}

	origin := obs[0].date
	rates := make([]float64, len(obs))
	for i, o := range obs {
		rates[i] = o.rate
	}

	smoothed, offset, err := Smooth(rates, opts.Window)
	if err != nil {
		return production.TimeSeries{}, err
	}

	samples := make([]production.Sample, 0, len(smoothed))
	for i, v := range smoothed {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		samples = append(samples, production.Sample{
			Day:  elapsedDays(origin, obs[offset+i].date),
			Rate: v,
		})
	}

	if len(samples) < MinSamples {
		return production.TimeSeries{}, errors.InvalidData(
			"too few samples remain after preprocessing",
			"samples", len(samples), "required", MinSamples, "window", opts.Window)
	}

	ts := production.TimeSeries{Samples: samples}
	if err := ts.Validate(); err != nil {
		return production.TimeSeries{}, err
	}
	return ts, nil
}

func selectRows(records []production.Record, opts Options) ([]observation, error) {
	var obs []observation
	var last time.Time
	selected := 0
	for i, r := range records {
		if opts.Well != "" && r.Well != opts.Well {
			continue
		}
		if !opts.Until.IsZero() && r.Date.After(opts.Until) {
			continue
		}
		if selected > 0 && r.Date.Before(last) {
			return nil, errors.InvalidData(
				fmt.Sprintf("record dates are not in non-decreasing order at %s", r.Date.Format("2006-01-02")),
				"row", i)
		}
		last = r.Date
		selected++

		v := r.Volume(opts.Channel)
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		obs = append(obs, observation{date: r.Date, rate: v})
	}
	return obs, nil
}

// rejectOutliers keeps observations inside mean ± k·sd of the raw rate
func rejectOutliers(obs []observation, k float64) ([]observation, error) {
	if len(obs) < 2 {
		return obs, nil
	}
	if k <= 0 {
		k = 3
	}

	data := make(stats.Float64Data, len(obs))
	for i, o := range obs {
		data[i] = o.rate
	}
	mean, err := stats.Mean(data)
	if err != nil {
		return nil, errors.InvalidData(fmt.Sprintf("outlier rejection: %v", err))
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return nil, errors.InvalidData(fmt.Sprintf("outlier rejection: %v", err))
	}

	lo, hi := mean-k*sd, mean+k*sd
	kept := obs[:0:0]
	for _, o := range obs {
		if o.rate >= lo && o.rate <= hi {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return nil, errors.InvalidData("outlier rejection removed every sample", "mean", mean, "sd", sd)
	}
	return kept, nil
}

func elapsedDays(origin, t time.Time) int {
	return int(t.Sub(origin) / day)
}
