// Package models contains data structures used throughout the application
package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// NotConnectedMessage tags the fallback reading returned when the backend is unreachable
const NotConnectedMessage = "Not Connected"

// LightMax is the upper bound of the raw LDR scale (lower values are brighter)
const LightMax = 1023

// Reading represents a single sample from the environmental monitor
type Reading struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %RH
	Light       float64 `json:"light"`       // Raw LDR value 0-1023, integer valued
	Timestamp   string  `json:"timestamp"`   // ISO-8601
	Message     string  `json:"message,omitempty"`
}

// reading mirrors Reading with loosely typed channels for decoding
type reading struct {
	Temperature json.RawMessage `json:"temperature"`
	Humidity    json.RawMessage `json:"humidity"`
	Light       json.RawMessage `json:"light"`
	Timestamp   string          `json:"timestamp"`
	Message     string          `json:"message,omitempty"`
}

// UnmarshalJSON decodes a reading, mapping null or non-numeric channels to NaN
func (r *Reading) UnmarshalJSON(data []byte) error {
	var raw reading
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Temperature = parseChannel(raw.Temperature)
	r.Humidity = parseChannel(raw.Humidity)
	r.Light = parseChannel(raw.Light)
	r.Timestamp = raw.Timestamp
	r.Message = raw.Message
	return nil
}

// MarshalJSON encodes NaN channels as null
func (r Reading) MarshalJSON() ([]byte, error) {
	out := struct {
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
		Light       *float64 `json:"light"`
		Timestamp   string   `json:"timestamp"`
		Message     string   `json:"message,omitempty"`
	}{
		Temperature: finiteOrNil(r.Temperature),
		Humidity:    finiteOrNil(r.Humidity),
		Light:       finiteOrNil(r.Light),
		Timestamp:   r.Timestamp,
		Message:     r.Message,
	}
	return json.Marshal(out)
}

func parseChannel(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}

	// Some firmware revisions send numbers as strings
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NotConnectedReading returns the zeroed reading used when no device data is reachable
func NotConnectedReading() *Reading {
	return &Reading{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   NotConnectedMessage,
	}
}

// IsPlaceholder returns true for the fallback reading
func (r *Reading) IsPlaceholder() bool {
	return r == nil || r.Message == NotConnectedMessage
}

// Time parses the reading timestamp
func (r *Reading) Time() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
		return t, nil
	}
	// Backends built on JavaScript Date omit the zone suffix on some paths
	return time.Parse("2006-01-02T15:04:05.000", r.Timestamp)
}

// LightLevel returns the light channel as the integer value the LDR reports
func (r *Reading) LightLevel() int {
	if math.IsNaN(r.Light) {
		return 0
	}
	return int(math.Round(r.Light))
}

// Brightness returns light as a 0-100 percentage where 100 is brightest.
// The raw scale is inverted: 0 is full light, 1023 is darkness.
func (r *Reading) Brightness() float64 {
	if math.IsNaN(r.Light) {
		return 0
	}
	v := math.Max(0, math.Min(LightMax, r.Light))
	return (LightMax - v) / LightMax * 100
}

// Channel identifies one of the measured quantities
type Channel string

// Channels
const (
	ChannelTemperature Channel = "temperature"
	ChannelHumidity    Channel = "humidity"
	ChannelLight       Channel = "light"
)

// Channels lists every channel in display order
var Channels = []Channel{ChannelTemperature, ChannelHumidity, ChannelLight}

// Value returns the reading's value for a channel
func (r *Reading) Value(ch Channel) float64 {
	switch ch {
	case ChannelTemperature:
		return r.Temperature
	case ChannelHumidity:
		return r.Humidity
	case ChannelLight:
		return r.Light
	default:
		return math.NaN()
	}
}

// Unit returns the display unit of a channel
func (ch Channel) Unit() string {
	switch ch {
	case ChannelTemperature:
		return "°C"
	case ChannelHumidity:
		return "%"
	default:
		return ""
	}
}

// ParseChannel converts a channel name
func ParseChannel(s string) (Channel, bool) {
	for _, ch := range Channels {
		if string(ch) == s {
			return ch, true
		}
	}
	return "", false
}
