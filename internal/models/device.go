package models

import "fmt"

// DeviceStatus represents the bridge's view of the sensor device
type DeviceStatus struct {
	Connected          bool   `json:"connected"`
	Uptime             int64  `json:"uptime"` // Seconds
	ReadingCount       int64  `json:"readingCount"`
	Port               string `json:"port"`
	SamplingInterval   int    `json:"samplingInterval,omitempty"` // Seconds
	TemperatureEnabled bool   `json:"temperatureEnabled"`
	LightEnabled       bool   `json:"lightEnabled"`
}

// DisconnectedStatus returns the status used when the backend cannot be reached
func DisconnectedStatus() *DeviceStatus {
	return &DeviceStatus{}
}

// ConnectionInfo contains serial link statistics reported by the backend
type ConnectionInfo struct {
	Connected  bool   `json:"connected"`
	Port       string `json:"port"`
	BaudRate   int    `json:"baudRate"`
	Reconnects int    `json:"reconnects"`
	Errors     int    `json:"errors"`
	LastError  string `json:"lastError,omitempty"`
	LastDataAt string `json:"lastDataAt,omitempty"`
}

// Range is an inclusive min/max pair
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains returns true if v is within the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// AlertThresholds holds per-channel alert bounds
type AlertThresholds struct {
	Temperature Range `json:"temperature"`
	Humidity    Range `json:"humidity"`
}

// Validate checks that every range is ordered
func (a AlertThresholds) Validate() error {
	if a.Temperature.Min >= a.Temperature.Max {
		return fmt.Errorf("temperature min %.1f must be below max %.1f", a.Temperature.Min, a.Temperature.Max)
	}
	if a.Humidity.Min >= a.Humidity.Max {
		return fmt.Errorf("humidity min %.1f must be below max %.1f", a.Humidity.Min, a.Humidity.Max)
	}
	return nil
}

// Calibration holds sensor offsets and the light threshold
type Calibration struct {
	TemperatureOffset float64 `json:"temperatureOffset"`
	HumidityOffset    float64 `json:"humidityOffset"`
	LightThreshold    int     `json:"lightThreshold"`
}

// Validate checks the calibration against the sensor scales
func (c Calibration) Validate() error {
	if c.LightThreshold < 0 || c.LightThreshold > LightMax {
		return fmt.Errorf("light threshold %d outside 0-%d", c.LightThreshold, LightMax)
	}
	return nil
}

// DeviceSettings is the device configuration as stored by the backend
type DeviceSettings struct {
	TemperatureOffset float64         `json:"temperatureOffset"`
	HumidityOffset    float64         `json:"humidityOffset"`
	LightThreshold    int             `json:"lightThreshold"`
	SamplingInterval  int             `json:"samplingInterval,omitempty"`
	AlertThresholds   AlertThresholds `json:"alertThresholds"`
}

// Calibration extracts the calibration part of the settings
func (d *DeviceSettings) Calibration() Calibration {
	return Calibration{
		TemperatureOffset: d.TemperatureOffset,
		HumidityOffset:    d.HumidityOffset,
		LightThreshold:    d.LightThreshold,
	}
}

// ControlAction is a command understood by the device
type ControlAction string

// Control actions
const (
	ActionLEDOn   ControlAction = "led_on"
	ActionLEDOff  ControlAction = "led_off"
	ActionReset   ControlAction = "reset"
	ActionRestart ControlAction = "restart"
)

// Valid returns true for known actions
func (a ControlAction) Valid() bool {
	switch a {
	case ActionLEDOn, ActionLEDOff, ActionReset, ActionRestart:
		return true
	default:
		return false
	}
}

// Sensor names a toggleable sensor on the device
type Sensor string

// Sensors. SensorTemperature covers the combined temperature/humidity sensor.
const (
	SensorTemperature Sensor = "temp"
	SensorLight       Sensor = "light"
)

// Valid returns true for known sensors
func (s Sensor) Valid() bool {
	return s == SensorTemperature || s == SensorLight
}

// Connectivity is the tri-state connection indicator shown by the dashboard
type Connectivity string

// Connectivity states
const (
	ConnectivityUnknown      Connectivity = "unknown"
	ConnectivityConnected    Connectivity = "connected"
	ConnectivityDisconnected Connectivity = "disconnected"
)
