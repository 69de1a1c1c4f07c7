package preprocess

import (
	"welldecline/internal/errors"
)

// Smooth applies a centered moving average of the given width. Positions
// without a complete window are dropped: window/2 at the start and
// (window-1)/2 at the end, so len(out) == len(values)-window+1. An even
// window labels each mean with the later of its two middle samples, as
// pandas rolling(center=True) does. The second return value is the index
// in values of out[0].
func Smooth(values []float64, window int) ([]float64, int, error) {
	if window < 1 {
		return nil, 0, errors.InvalidData("smoothing window must be at least 1", "window", window)
	}
	if len(values) < window {
		return nil, 0, errors.InvalidData("series shorter than smoothing window",
			"samples", len(values), "window", window)
	}

	lead := window / 2
	out := make([]float64, 0, len(values)-window+1)

	// running sum over values[i-lead : i-lead+window]
	sum := 0.0
	for j := 0; j < window; j++ {
		sum += values[j]
	}
	out = append(out, sum/float64(window))
	for start := 1; start+window <= len(values); start++ {
		sum += values[start+window-1] - values[start-1]
		out = append(out, sum/float64(window))
	}
	return out, lead, nil
}
