// Package notifications handles system notifications and alerts
package notifications

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
)

// Alert type constants
const (
	alertTemperatureLow  = "temperature_low"
	alertTemperatureHigh = "temperature_high"
	alertHumidityLow     = "humidity_low"
	alertHumidityHigh    = "humidity_high"
	alertDisconnected    = "disconnected"
)

var allAlerts = []string{
	alertTemperatureLow, alertTemperatureHigh,
	alertHumidityLow, alertHumidityHigh,
	alertDisconnected,
}

// Manager raises threshold alerts for new readings
type Manager struct {
	settings      *models.Settings
	thresholds    *models.AlertThresholds
	lastAlertTime map[string]time.Time
	mu            sync.Mutex

	notify    func(title, message string) error
	available func() bool
	now       func() time.Time

	probeOnce sync.Once
	canNotify bool
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		available: DaemonAvailable,
		now:       time.Now,
	}
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// SetThresholds sets the bounds fetched from the device; nil disables range alerts
func (m *Manager) SetThresholds(t *models.AlertThresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t == nil {
		m.thresholds = nil
		return
	}
	copied := *t
	m.thresholds = &copied
}

// Observe checks a completed snapshot; it is a poller.Listener
func (m *Manager) Observe(snap poller.Snapshot) {
	if snap.Phase == poller.PhaseError {
		return
	}
	if err := m.CheckAndNotify(snap.Latest, snap.Connectivity); err != nil {
		log.Printf("WARN: notification error: %v", err)
	}
}

// CheckAndNotify checks a reading against the thresholds and sends notifications if needed
func (m *Manager) CheckAndNotify(reading *models.Reading, connectivity models.Connectivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Settings are saved from the frontend while cycles run
	settings := m.settings.Clone()
	active := m.activeAlerts(settings, reading, connectivity)

	// An alert that is no longer active ends its excursion
	for _, alertType := range allAlerts {
		if !active[alertType] {
			delete(m.lastAlertTime, alertType)
		}
	}

	var firstErr error
	for _, alertType := range allAlerts {
		if !active[alertType] || !m.shouldRepeat(settings, alertType) {
			continue
		}
		if !m.daemonAvailable() {
			return nil
		}

		title, message := m.formatNotification(reading, alertType)
		if err := m.notify(title, message); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.lastAlertTime[alertType] = m.now()
	}

	return firstErr
}

// activeAlerts returns the alerts whose condition currently holds
func (m *Manager) activeAlerts(settings *models.Settings, reading *models.Reading, connectivity models.Connectivity) map[string]bool {
	active := make(map[string]bool)

	if connectivity == models.ConnectivityDisconnected && settings.EnableDisconnectAlert {
		active[alertDisconnected] = true
	}
	if reading.IsPlaceholder() || m.thresholds == nil {
		return active
	}

	if settings.EnableTemperatureAlerts && !math.IsNaN(reading.Temperature) {
		switch {
		case reading.Temperature < m.thresholds.Temperature.Min:
			active[alertTemperatureLow] = true
		case reading.Temperature > m.thresholds.Temperature.Max:
			active[alertTemperatureHigh] = true
		}
	}
	if settings.EnableHumidityAlerts && !math.IsNaN(reading.Humidity) {
		switch {
		case reading.Humidity < m.thresholds.Humidity.Min:
			active[alertHumidityLow] = true
		case reading.Humidity > m.thresholds.Humidity.Max:
			active[alertHumidityHigh] = true
		}
	}

	return active
}

// shouldRepeat reports whether an active alert may be sent now
func (m *Manager) shouldRepeat(settings *models.Settings, alertType string) bool {
	lastTime, ok := m.lastAlertTime[alertType]
	if !ok {
		return true
	}
	if settings.RepeatAlertMinutes <= 0 {
		// Once per excursion
		return false
	}
	repeatDuration := time.Duration(settings.RepeatAlertMinutes) * time.Minute
	return m.now().Sub(lastTime) >= repeatDuration
}

func (m *Manager) daemonAvailable() bool {
	m.probeOnce.Do(func() {
		m.canNotify = m.available()
		if !m.canNotify {
			log.Println("WARN: no notification daemon found, desktop alerts disabled")
		}
	})
	return m.canNotify
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(reading *models.Reading, alertType string) (string, string) {
	var title, message string

	switch alertType {
	case alertTemperatureLow:
		title = "🥶 Low Temperature"
		message = fmt.Sprintf("Temperature is %.1f°C (minimum %.1f°C)", reading.Temperature, m.thresholds.Temperature.Min)
	case alertTemperatureHigh:
		title = "🔥 High Temperature"
		message = fmt.Sprintf("Temperature is %.1f°C (maximum %.1f°C)", reading.Temperature, m.thresholds.Temperature.Max)
	case alertHumidityLow:
		title = "🏜️ Low Humidity"
		message = fmt.Sprintf("Humidity is %.1f%% (minimum %.1f%%)", reading.Humidity, m.thresholds.Humidity.Min)
	case alertHumidityHigh:
		title = "💧 High Humidity"
		message = fmt.Sprintf("Humidity is %.1f%% (maximum %.1f%%)", reading.Humidity, m.thresholds.Humidity.Max)
	case alertDisconnected:
		title = "⚠️ Sensor Disconnected"
		message = "The backend reports the environmental monitor as disconnected"
	}

	return title, message
}

// ClearAlertState clears the alert state for a specific type or all types
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify("EnviroMoon", "Test notification - alerts are working!")
}
