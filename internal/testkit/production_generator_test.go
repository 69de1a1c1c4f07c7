package testkit

import (
	"testing"

	"welldecline/domain/decline"
)

func TestProductionGenerator_Basic(t *testing.T) {
	config := DefaultProductionConfig()
	config.Days = 120 // Small for testing

	records := NewProductionGenerator(config).GenerateRecords()
	if len(records) != 120 {
		t.Fatalf("Expected 120 records, got %d", len(records))
	}

	for i, r := range records {
		if r.Well != config.Well {
			t.Errorf("Record %d has well %q", i, r.Well)
		}
		if r.Oil < 0 || r.Gas < 0 {
			t.Errorf("Record %d has negative volume (oil=%.2f gas=%.2f)", i, r.Oil, r.Gas)
		}
		if i > 0 && !r.Date.After(records[i-1].Date) {
			t.Errorf("Record %d is not after record %d", i, i-1)
		}
	}
}

func TestProductionGenerator_Deterministic(t *testing.T) {
	config := DefaultProductionConfig()
	config.Days = 50

	a := NewProductionGenerator(config).GenerateRecords()
	b := NewProductionGenerator(config).GenerateRecords()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Record %d differs between runs with the same seed", i)
		}
	}
}

func TestSeries(t *testing.T) {
	ts := Series(decline.NewExponential(1000, 0.01), DayRange(0, 100))
	if ts.Len() != 101 {
		t.Fatalf("Expected 101 samples, got %d", ts.Len())
	}
	if ts.Samples[0].Rate != 1000 {
		t.Errorf("Expected initial rate 1000, got %.4f", ts.Samples[0].Rate)
	}
	if err := ts.Validate(); err != nil {
		t.Errorf("Generated series is invalid: %v", err)
	}
}

func TestUniformNoise(t *testing.T) {
	ts := UniformNoise(100, 7)
	for i, s := range ts.Samples {
		if s.Rate < 0 || s.Rate >= 1 {
			t.Errorf("Sample %d rate %.4f outside [0,1)", i, s.Rate)
		}
	}
}
