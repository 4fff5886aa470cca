package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const appDirName = "enviromoon"

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Connection settings
	BackendURL      string `json:"backendUrl"`      // Overrides ENVIROMOON_API_URL when set
	RefreshInterval int    `json:"refreshInterval"` // Seconds (10-600)

	// Display settings
	DefaultRange string `json:"defaultRange"` // TimeRange key

	// Alert settings
	EnableTemperatureAlerts bool `json:"enableTemperatureAlerts"`
	EnableHumidityAlerts    bool `json:"enableHumidityAlerts"`
	EnableDisconnectAlert   bool `json:"enableDisconnectAlert"`
	RepeatAlertMinutes      int  `json:"repeatAlertMinutes"` // 0 = once per excursion

	// Chart settings
	ChartColorTemperature string `json:"chartColorTemperature"`
	ChartColorHumidity    string `json:"chartColorHumidity"`
	ChartColorLight       string `json:"chartColorLight"`

	// System settings
	StartMinimized bool `json:"startMinimized"`
	AutoStart      bool `json:"autoStart"`

	// Window state (not user-configurable)
	WindowWidth  int `json:"windowWidth"`
	WindowHeight int `json:"windowHeight"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		BackendURL:      "",
		RefreshInterval: 15,
		DefaultRange:    DefaultTimeRange,

		EnableTemperatureAlerts: true,
		EnableHumidityAlerts:    true,
		EnableDisconnectAlert:   false,
		RepeatAlertMinutes:      30,

		ChartColorTemperature: "#ef4444", // Red
		ChartColorHumidity:    "#3b82f6", // Blue
		ChartColorLight:       "#facc15", // Yellow

		StartMinimized: true,
		AutoStart:      false,

		WindowWidth:  900,
		WindowHeight: 700,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, appDirName)
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load loads settings from disk
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFile(path)
}

// LoadFile loads settings from the given path, keeping defaults if it does not exist
func (s *Settings) LoadFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app, not user input
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	return json.Unmarshal(data, s)
}

// Save saves settings to disk
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveFile(path)
}

// SaveFile writes settings to the given path
func (s *Settings) SaveFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
}

// copySettingsFields copies all fields from other to s, excluding the mutex.
// The caller must hold the necessary locks on s and other.
func (s *Settings) copySettingsFields(other *Settings) {
	s.BackendURL = other.BackendURL
	s.RefreshInterval = other.RefreshInterval
	s.DefaultRange = other.DefaultRange
	s.EnableTemperatureAlerts = other.EnableTemperatureAlerts
	s.EnableHumidityAlerts = other.EnableHumidityAlerts
	s.EnableDisconnectAlert = other.EnableDisconnectAlert
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.ChartColorTemperature = other.ChartColorTemperature
	s.ChartColorHumidity = other.ChartColorHumidity
	s.ChartColorLight = other.ChartColorLight
	s.StartMinimized = other.StartMinimized
	s.AutoStart = other.AutoStart
	s.WindowWidth = other.WindowWidth
	s.WindowHeight = other.WindowHeight
}

// Normalize clamps out-of-range values back to sane defaults
func (s *Settings) Normalize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RefreshInterval < 10 {
		s.RefreshInterval = 10
	}
	if s.RefreshInterval > 600 {
		s.RefreshInterval = 600
	}
	if _, err := LookupTimeRange(s.DefaultRange); err != nil {
		s.DefaultRange = DefaultTimeRange
	}
	if s.RepeatAlertMinutes < 0 {
		s.RepeatAlertMinutes = 0
	}
}

// EffectiveURL returns the backend URL, falling back to the environment-provided one
func (s *Settings) EffectiveURL(fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.BackendURL != "" {
		return s.BackendURL
	}
	return fallback
}

// ChartColor returns the configured colour of a channel
func (s *Settings) ChartColor(ch Channel) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch ch {
	case ChannelTemperature:
		return s.ChartColorTemperature
	case ChannelHumidity:
		return s.ChartColorHumidity
	default:
		return s.ChartColorLight
	}
}
