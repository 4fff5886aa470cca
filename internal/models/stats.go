package models

import (
	"fmt"
	"time"
)

// Unavailable is shown in place of a statistic that could not be computed
const Unavailable = "--"

// ChannelStats holds derived statistics for one channel over the displayed window
type ChannelStats struct {
	Available bool    `json:"available"`
	Current   float64 `json:"current"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Avg       float64 `json:"avg"`
	Trend     float64 `json:"trend"` // Second-half mean minus first-half mean
}

// Format renders a statistic with the given precision, or the unavailable marker
func (c ChannelStats) Format(v float64, precision int) string {
	if !c.Available {
		return Unavailable
	}
	return fmt.Sprintf("%.*f", precision, v)
}

// TrendArrow returns an arrow for the trend direction
func (c ChannelStats) TrendArrow() string {
	switch {
	case c.Trend > 0:
		return "↑"
	case c.Trend < 0:
		return "↓"
	default:
		return "→"
	}
}

// Stats groups channel statistics
type Stats struct {
	Temperature ChannelStats `json:"temperature"`
	Humidity    ChannelStats `json:"humidity"`
	Light       ChannelStats `json:"light"`
}

// Channel returns the statistics of one channel
func (s Stats) Channel(ch Channel) ChannelStats {
	switch ch {
	case ChannelTemperature:
		return s.Temperature
	case ChannelHumidity:
		return s.Humidity
	default:
		return s.Light
	}
}

// TimeRange is a selectable history window
type TimeRange struct {
	Key         string        `json:"key"`
	Label       string        `json:"label"`
	Window      time.Duration `json:"window"`
	Limit       int           `json:"limit"`       // Maximum rows requested from the backend
	ChartPoints int           `json:"chartPoints"` // Downsampling target
}

// Span returns the window ending at now
func (r TimeRange) Span(now time.Time) (start, end time.Time) {
	return now.Add(-r.Window), now
}

// TimeRanges are the presets offered by the dashboard
var TimeRanges = []TimeRange{
	{Key: "1h", Label: "1 Hour", Window: time.Hour, Limit: 120, ChartPoints: 20},
	{Key: "6h", Label: "6 Hours", Window: 6 * time.Hour, Limit: 360, ChartPoints: 24},
	{Key: "24h", Label: "24 Hours", Window: 24 * time.Hour, Limit: 500, ChartPoints: 24},
	{Key: "7d", Label: "7 Days", Window: 7 * 24 * time.Hour, Limit: 1000, ChartPoints: 28},
	{Key: "30d", Label: "30 Days", Window: 30 * 24 * time.Hour, Limit: 2000, ChartPoints: 30},
}

// DefaultTimeRange is used when nothing else is selected
const DefaultTimeRange = "24h"

// LookupTimeRange finds a preset by key
func LookupTimeRange(key string) (TimeRange, error) {
	for _, r := range TimeRanges {
		if r.Key == key {
			return r, nil
		}
	}
	return TimeRange{}, fmt.Errorf("unknown time range %q", key)
}

// MustTimeRange returns a preset by key, falling back to the default
func MustTimeRange(key string) TimeRange {
	if r, err := LookupTimeRange(key); err == nil {
		return r
	}
	r, _ := LookupTimeRange(DefaultTimeRange)
	return r
}
