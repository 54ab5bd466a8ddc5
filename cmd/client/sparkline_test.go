package main

import (
	"testing"
	"unicode/utf8"

	"market-agent/src/models"

	"github.com/stretchr/testify/assert"
)

func points(values ...float64) []models.MTimeSeriesPoint {
	out := make([]models.MTimeSeriesPoint, len(values))
	for i, v := range values {
		out[i] = models.MTimeSeriesPoint{Date: "2024-01-01", Value: v}
	}
	return out
}

func TestSparkline(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("▁█", Sparkline(points(1, 2), 10))
	assert.Equal("▁▁▁", Sparkline(points(5, 5, 5), 10), "flat series")
	assert.Equal("", Sparkline(nil, 10))
	assert.Equal("▁▄█", Sparkline(points(0, 50, 100), 10))
}

func TestSparklineResamples(t *testing.T) {
	series := make([]float64, 100)
	for i := range series {
		series[i] = float64(i)
	}
	line := Sparkline(points(series...), 20)
	assert.Equal(t, 20, utf8.RuneCountInString(line))
	assert.Equal(t, '▁', []rune(line)[0])
	assert.Equal(t, '█', []rune(line)[19])
}
