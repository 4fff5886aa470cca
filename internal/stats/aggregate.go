// Package stats derives per-channel statistics from a reading series
package stats

import (
	"math"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

// Aggregate computes current/min/max/avg/trend for every channel.
// Channels are computed independently; a channel with no numeric values
// yields placeholder statistics without affecting the others.
func Aggregate(series []models.Reading, latest *models.Reading) models.Stats {
	return models.Stats{
		Temperature: Channel(series, latest, models.ChannelTemperature),
		Humidity:    Channel(series, latest, models.ChannelHumidity),
		Light:       Channel(series, latest, models.ChannelLight),
	}
}

// Channel computes the statistics of a single channel
func Channel(series []models.Reading, latest *models.Reading, ch models.Channel) models.ChannelStats {
	values := make([]float64, 0, len(series))
	for i := range series {
		if v := series[i].Value(ch); isNumber(v) {
			values = append(values, v)
		}
	}

	if len(values) == 0 {
		return models.ChannelStats{}
	}

	current := values[0]
	if latest != nil && !latest.IsPlaceholder() {
		if v := latest.Value(ch); isNumber(v) {
			current = v
		}
	}

	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	return models.ChannelStats{
		Available: true,
		Current:   current,
		Min:       minVal,
		Max:       maxVal,
		Avg:       mean(values),
		Trend:     Trend(values),
	}
}

// Trend returns the mean of the second half minus the mean of the first half.
// The split is at floor(n/2), so an odd middle element belongs to the second half.
func Trend(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	half := len(values) / 2
	return mean(values[half:]) - mean(values[:half])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func isNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
