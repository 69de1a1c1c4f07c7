package production

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"welldecline/internal/errors"
)

// Channel selects which volume column of a record is analysed
type Channel string

const (
	ChannelOil Channel = "oil"
	ChannelGas Channel = "gas"
)

// ParseChannel converts a user-supplied name into a Channel
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case ChannelOil:
		return ChannelOil, nil
	case ChannelGas:
		return ChannelGas, nil
	default:
		return "", errors.InvalidInput(fmt.Sprintf("unknown volume channel %q (want oil or gas)", s))
	}
}

// Record is one raw production row as delivered by the loader.
// Missing volumes are NaN.
type Record struct {
	Well string
	Date time.Time
	Oil  float64
	Gas  float64
}

// Volume returns the record's value on the given channel
func (r Record) Volume(ch Channel) float64 {
	switch ch {
	case ChannelGas:
		return r.Gas
	default:
		return r.Oil
	}
}

// Sample is a single observation: elapsed whole days since the first
// valid record and the (smoothed) production rate.
type Sample struct {
	Day  int
	Rate float64
}

// TimeSeries is an ordered sequence of samples with non-decreasing Day
// and finite rates.
type TimeSeries struct {
	Samples []Sample
}

// Len returns the number of samples
func (ts TimeSeries) Len() int {
	return len(ts.Samples)
}

// Days returns the day axis as float64 values
func (ts TimeSeries) Days() []float64 {
	out := make([]float64, len(ts.Samples))
	for i, s := range ts.Samples {
		out[i] = float64(s.Day)
	}
	return out
}

// Rates returns the rate axis
func (ts TimeSeries) Rates() []float64 {
	out := make([]float64, len(ts.Samples))
	for i, s := range ts.Samples {
		out[i] = s.Rate
	}
	return out
}

// Validate enforces the series invariants
func (ts TimeSeries) Validate() error {
	if len(ts.Samples) == 0 {
		return errors.InvalidData("time series is empty")
	}
	for i, s := range ts.Samples {
		if s.Day < 0 {
			return errors.InvalidData("negative day in time series", "index", i, "day", s.Day)
		}
		if math.IsNaN(s.Rate) || math.IsInf(s.Rate, 0) {
			return errors.InvalidData("non-finite rate in time series", "index", i)
		}
		if s.Rate < 0 {
			return errors.InvalidData("negative rate in time series", "index", i, "rate", s.Rate)
		}
		if i > 0 && s.Day < ts.Samples[i-1].Day {
			return errors.InvalidData("days are not in non-decreasing order",
				"index", i, "day", s.Day, "previous_day", ts.Samples[i-1].Day)
		}
	}
	return nil
}

// Scale returns a copy with every day multiplied by k.
func (ts TimeSeries) Scale(k int) TimeSeries {
	out := make([]Sample, len(ts.Samples))
	for i, s := range ts.Samples {
		out[i] = Sample{Day: s.Day * k, Rate: s.Rate}
	}
	return TimeSeries{Samples: out}
}

// CumulativeSeries pairs each sample's day with the running sum of rate
// up to and including that sample.
type CumulativeSeries struct {
	Days       []int
	Cumulative []float64
}

// Len returns the number of points
func (cs CumulativeSeries) Len() int {
	return len(cs.Cumulative)
}

// Cumulative derives the running production total of the series
func (ts TimeSeries) Cumulative() (CumulativeSeries, error) {
	if err := ts.Validate(); err != nil {
		return CumulativeSeries{}, err
	}
	running, err := stats.CumulativeSum(ts.Rates())
	if err != nil {
		return CumulativeSeries{}, errors.InvalidData(fmt.Sprintf("cumulative sum: %v", err))
	}

	days := make([]int, len(ts.Samples))
	for i, s := range ts.Samples {
		days[i] = s.Day
	}
	return CumulativeSeries{Days: days, Cumulative: running}, nil
}
