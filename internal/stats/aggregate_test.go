package stats

import (
	"math"
	"testing"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

func temps(values ...float64) []models.Reading {
	series := make([]models.Reading, len(values))
	for i, v := range values {
		series[i] = models.Reading{Temperature: v, Humidity: 50, Light: 300}
	}
	return series
}

func TestAggregate_Empty(t *testing.T) {
	result := Aggregate(nil, nil)

	for _, ch := range models.Channels {
		s := result.Channel(ch)
		if s.Available {
			t.Errorf("%s should be unavailable for an empty series", ch)
		}
		if s.Trend != 0 {
			t.Errorf("%s trend = %v, want 0", ch, s.Trend)
		}
		if s.Format(s.Current, 1) != models.Unavailable {
			t.Errorf("%s current should render as placeholder", ch)
		}
	}
}

func TestAggregate_SingleElement(t *testing.T) {
	result := Aggregate(temps(22), nil)

	for _, ch := range models.Channels {
		s := result.Channel(ch)
		if !s.Available {
			t.Errorf("%s should be available", ch)
		}
		if s.Trend != 0 {
			t.Errorf("%s trend = %v, want 0 for a single reading", ch, s.Trend)
		}
	}
}

func TestAggregate_Temperature(t *testing.T) {
	result := Aggregate(temps(10, 20, 30, 40), nil)
	s := result.Temperature

	if s.Min != 10 {
		t.Errorf("Min = %v, want 10", s.Min)
	}
	if s.Max != 40 {
		t.Errorf("Max = %v, want 40", s.Max)
	}
	if s.Avg != 25 {
		t.Errorf("Avg = %v, want 25", s.Avg)
	}
	if s.Trend != 20 {
		t.Errorf("Trend = %v, want 20", s.Trend)
	}
	if s.Current != 10 {
		t.Errorf("Current = %v, want first element 10", s.Current)
	}
}

func TestAggregate_OddLengthTrend(t *testing.T) {
	// Split at floor(5/2)=2: first [1,2], second [3,4,5]
	result := Aggregate(temps(1, 2, 3, 4, 5), nil)
	if result.Temperature.Trend != 2.5 {
		t.Errorf("Trend = %v, want 2.5", result.Temperature.Trend)
	}
}

func TestAggregate_NaNExcluded(t *testing.T) {
	result := Aggregate(temps(10, math.NaN(), 30), nil)
	s := result.Temperature

	if !s.Available {
		t.Fatal("Temperature should be available")
	}
	if s.Min != 10 || s.Max != 30 {
		t.Errorf("Min/Max = %v/%v, want 10/30", s.Min, s.Max)
	}
	if s.Avg != 20 {
		t.Errorf("Avg = %v, want 20", s.Avg)
	}
}

func TestAggregate_ChannelsIndependent(t *testing.T) {
	series := []models.Reading{
		{Temperature: 20, Humidity: math.NaN(), Light: 100},
		{Temperature: 21, Humidity: math.NaN(), Light: 200},
	}
	result := Aggregate(series, nil)

	if result.Humidity.Available {
		t.Error("Humidity should be unavailable when every value is NaN")
	}
	if !result.Temperature.Available || !result.Light.Available {
		t.Error("Other channels should still be computed")
	}
}

func TestAggregate_CurrentFromLatest(t *testing.T) {
	latest := &models.Reading{Temperature: 25, Humidity: math.NaN(), Light: 7}
	result := Aggregate(temps(10, 20), latest)

	if result.Temperature.Current != 25 {
		t.Errorf("Current = %v, want latest 25", result.Temperature.Current)
	}
	if result.Humidity.Current != 50 {
		t.Errorf("Invalid latest humidity should fall back to series, got %v", result.Humidity.Current)
	}
	if result.Light.Current != 7 {
		t.Errorf("Light current = %v, want 7", result.Light.Current)
	}
}

func TestAggregate_PlaceholderLatestIgnored(t *testing.T) {
	result := Aggregate(temps(18, 19), models.NotConnectedReading())
	if result.Temperature.Current != 18 {
		t.Errorf("Current = %v, want series head 18", result.Temperature.Current)
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", nil, 0},
		{"Single", []float64{5}, 0},
		{"Flat", []float64{3, 3, 3, 3}, 0},
		{"Falling", []float64{4, 2}, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trend(tt.values); got != tt.expected {
				t.Errorf("Trend() = %v, want %v", got, tt.expected)
			}
		})
	}
}
