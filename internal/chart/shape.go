// Package chart shapes reading series into plot-ready points and renders them
package chart

import (
	"math"
	"time"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

// maxLabels bounds how many x-axis labels a chart carries
const maxLabels = 6

// Point is a single plotted sample
type Point struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Light       float64 `json:"light"`
	Label       string  `json:"label"` // Empty for unlabeled points
	Timestamp   string  `json:"timestamp"`
}

// Value returns the plotted value of a channel
func (p Point) Value(ch models.Channel) float64 {
	switch ch {
	case models.ChannelTemperature:
		return p.Temperature
	case models.ChannelHumidity:
		return p.Humidity
	default:
		return p.Light
	}
}

// Data is the chart-ready representation of a series
type Data struct {
	Points []Point `json:"points"`
	Range  string  `json:"range"`
	Stride int     `json:"stride"`
}

// Stride returns the sampling stride for a series of length n
func Stride(n, target int) int {
	if target <= 0 {
		return 1
	}
	return max(1, n/target)
}

// Shape downsamples a newest-first series into chronological chart points.
// NaN values plot as zero; the point count depends only on the series length.
func Shape(series []models.Reading, rng models.TimeRange, loc *time.Location) Data {
	n := len(series)
	stride := Stride(n, rng.ChartPoints)
	if loc == nil {
		loc = time.Local
	}

	points := make([]Point, 0, (n+stride-1)/stride)
	for i := 0; i < n; i += stride {
		// Source order is newest first; walk it backwards
		r := series[n-1-i]
		points = append(points, Point{
			Temperature: plotValue(r.Temperature),
			Humidity:    plotValue(r.Humidity),
			Light:       plotValue(r.Light),
			Timestamp:   r.Timestamp,
		})
	}

	layout := labelLayout(rng.Window)
	for _, idx := range LabelIndices(len(points)) {
		r := models.Reading{Timestamp: points[idx].Timestamp}
		if ts, err := r.Time(); err == nil {
			points[idx].Label = ts.In(loc).Format(layout)
		}
	}

	return Data{Points: points, Range: rng.Key, Stride: stride}
}

// LabelIndices picks the first, the last and evenly spaced intermediate indices
func LabelIndices(n int) []int {
	if n == 0 {
		return nil
	}
	if n <= maxLabels {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	out := make([]int, maxLabels)
	for i := range out {
		out[i] = int(math.Round(float64(i*(n-1)) / float64(maxLabels-1)))
	}
	return out
}

func labelLayout(window time.Duration) string {
	switch {
	case window <= 24*time.Hour:
		return "15:04"
	case window < 7*24*time.Hour:
		return "Mon 15:04"
	default:
		return "Jan 2 15:04"
	}
}

func plotValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
