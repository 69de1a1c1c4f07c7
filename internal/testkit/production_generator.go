package testkit

import (
	"math"
	"math/rand"
	"time"

	"welldecline/domain/decline"
	"welldecline/domain/production"
	"welldecline/internal/models"
)

// ProductionGeneratorConfig configures the synthetic well generator
type ProductionGeneratorConfig struct {
	Well       string         `json:"well"`
	Oil        decline.Params `json:"oil"`
	GasOilRate float64        `json:"gas_oil_ratio"` // gas volume per unit of oil
	Days       int            `json:"days"`
	StartDate  time.Time      `json:"start_date"`
	NoiseLevel float64        `json:"noise_level"`  // relative gaussian noise on each day
	ShutInRate float64        `json:"shut_in_rate"` // probability of a zero-volume day
	SpikeRate  float64        `json:"spike_rate"`   // probability of a metering spike
	Seed       int64          `json:"seed"`
}

// DefaultProductionConfig returns a noisy hyperbolic oil producer
func DefaultProductionConfig() ProductionGeneratorConfig {
	return ProductionGeneratorConfig{
		Well:       "15/9-F-14",
		Oil:        decline.NewHyperbolic(4000, 0.004, 0.8),
		GasOilRate: 150,
		Days:       900,
		StartDate:  time.Date(2008, 7, 13, 0, 0, 0, 0, time.UTC),
		NoiseLevel: 0.05,
		ShutInRate: 0.02,
		SpikeRate:  0.005,
		Seed:       42,
	}
}

// ProductionGenerator produces daily production records following a known
// decline model, with operational noise layered on top.
type ProductionGenerator struct {
	config ProductionGeneratorConfig
	rng    *rand.Rand
}

// NewProductionGenerator creates a new generator
func NewProductionGenerator(config ProductionGeneratorConfig) *ProductionGenerator {
	return &ProductionGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateRecords returns one record per day, in date order
func (g *ProductionGenerator) GenerateRecords() []production.Record {
	records := make([]production.Record, 0, g.config.Days)
	for d := 0; d < g.config.Days; d++ {
		oil, err := models.Rate(g.config.Oil, float64(d))
		if err != nil {
			oil = 0
		}

		switch r := g.rng.Float64(); {
		case r < g.config.ShutInRate:
			oil = 0
		case r < g.config.ShutInRate+g.config.SpikeRate:
			oil *= 10
		default:
			oil *= 1 + g.config.NoiseLevel*g.rng.NormFloat64()
		}
		oil = math.Max(oil, 0)

		records = append(records, production.Record{
			Well: g.config.Well,
			Date: g.config.StartDate.AddDate(0, 0, d),
			Oil:  oil,
			Gas:  oil * g.config.GasOilRate,
		})
	}
	return records
}

// Series evaluates p exactly at each day
func Series(p decline.Params, days []int) production.TimeSeries {
	samples := make([]production.Sample, 0, len(days))
	for _, d := range days {
		q, err := models.Rate(p, float64(d))
		if err != nil {
			continue
		}
		samples = append(samples, production.Sample{Day: d, Rate: q})
	}
	return production.TimeSeries{Samples: samples}
}

// DayRange returns from, from+1, ..., to
func DayRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for d := from; d <= to; d++ {
		out = append(out, d)
	}
	return out
}

// UniformNoise returns a series with rates drawn from U[0,1)
func UniformNoise(n int, seed int64) production.TimeSeries {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]production.Sample, n)
	for i := range samples {
		samples[i] = production.Sample{Day: i, Rate: rng.Float64()}
	}
	return production.TimeSeries{Samples: samples}
}
