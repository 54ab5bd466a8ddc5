package main

import (
	"math"

	"market-agent/src/models"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws series as block characters, at most width wide. Longer
// series are resampled by averaging neighbouring points.
func Sparkline(series []models.MTimeSeriesPoint, width int) string {
	if len(series) == 0 || width <= 0 {
		return ""
	}

	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	if len(values) > width {
		values = resample(values, width)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		out[i] = sparkBlocks[idx]
	}
	return string(out)
}

func resample(values []float64, n int) []float64 {
	out := make([]float64, n)
	step := float64(len(values)) / float64(n)
	for i := range out {
		from := int(float64(i) * step)
		to := int(float64(i+1) * step)
		if to <= from {
			to = from + 1
		}
		sum := 0.0
		for _, v := range values[from:to] {
			sum += v
		}
		out[i] = sum / float64(to-from)
	}
	return out
}
