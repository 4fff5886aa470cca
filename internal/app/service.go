// Package app binds the dashboard to the desktop shell
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/alamin-nifty/enviromoon-mobile/internal/autostart"
	"github.com/alamin-nifty/enviromoon-mobile/internal/chart"
	"github.com/alamin-nifty/enviromoon-mobile/internal/config"
	"github.com/alamin-nifty/enviromoon-mobile/internal/enviromoon"
	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/notifications"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
	"github.com/alamin-nifty/enviromoon-mobile/internal/tray"
)

// Events emitted to the frontend
const (
	EventUpdate = "telemetry:update"
	EventError  = "telemetry:error"
)

// ErrNotStarted is returned by calls that need the poller before startup
var ErrNotStarted = errors.New("dashboard not started")

// ExportResult is returned to the frontend after an export
type ExportResult struct {
	CSV     string `json:"csv"`
	Rows    int    `json:"rows"`
	Summary string `json:"summary"`
}

// DashboardService is bound to the frontend and owns the polling loop
type DashboardService struct {
	env           config.Config
	settings      *models.Settings
	notifyManager *notifications.Manager
	iconGen       *tray.IconGenerator
	persist       bool
	autostartOn   func() (bool, error) // nil when autostart is not managed

	mu         sync.RWMutex
	client     *enviromoon.Client
	poller     *poller.Poller
	thresholds *models.AlertThresholds
	parent     context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	app  *application.App
	tray *application.SystemTray
}

// NewDashboardService creates the service with settings loaded from disk
func NewDashboardService(env config.Config) *DashboardService {
	settings := models.DefaultSettings()
	if err := settings.Load(); err != nil {
		log.Printf("ERROR: loading settings: %v", err)
	}
	settings.Normalize()

	s := newDashboardService(env, settings)
	s.persist = true
	s.autostartOn = func() (bool, error) { return autostart.IsEnabled(autostart.Desktop) }
	return s
}

func newDashboardService(env config.Config, settings *models.Settings) *DashboardService {
	return &DashboardService{
		env:           env,
		settings:      settings,
		notifyManager: notifications.NewManager(settings),
		iconGen:       tray.NewIconGenerator(),
	}
}

// ServiceStartup starts polling when the application starts
func (s *DashboardService) ServiceStartup(ctx context.Context, _ application.ServiceOptions) error {
	s.start(ctx)
	return nil
}

// ServiceShutdown stops polling
func (s *DashboardService) ServiceShutdown() error {
	s.stop()
	return nil
}

// SetApp sets the application used for events
func (s *DashboardService) SetApp(app *application.App) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app = app
}

// SetTray sets the system tray updated after each cycle
func (s *DashboardService) SetTray(t *application.SystemTray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tray = t
}

// IconGenerator returns the generator used for tray icons
func (s *DashboardService) IconGenerator() *tray.IconGenerator {
	return s.iconGen
}

func (s *DashboardService) start(parent context.Context) {
	settings := s.settings.Clone()

	client := enviromoon.NewClient(enviromoon.Options{
		BaseURL:         settings.EffectiveURL(s.env.APIURL),
		Timeout:         s.env.RequestTimeout,
		BreakerFailures: s.env.BreakerFailures,
		BreakerCooldown: s.env.BreakerCooldown,
	})

	opts := poller.DefaultOptions()
	opts.Interval = time.Duration(settings.RefreshInterval) * time.Second
	opts.Range = models.MustTimeRange(settings.DefaultRange)
	p := poller.New(client, opts)
	p.OnUpdate(s.onSnapshot)
	p.OnUpdate(s.notifyManager.Observe)

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	s.mu.Lock()
	s.parent = parent
	s.client = client
	s.poller = p
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	log.Printf("INFO: polling %s every %ds", client.BaseURL(), settings.RefreshInterval)

	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ERROR: poller stopped: %v", err)
		}
	}()
	go s.loadThresholds(ctx)
}

func (s *DashboardService) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// loadThresholds fetches the device alert bounds used for notifications and icon colours
func (s *DashboardService) loadThresholds(ctx context.Context) {
	client, _ := s.current()
	if client == nil {
		return
	}

	settings, err := client.Settings(ctx)
	if err != nil {
		log.Printf("WARN: loading device settings: %v", err)
		return
	}
	s.setThresholds(&settings.AlertThresholds)
}

func (s *DashboardService) setThresholds(t *models.AlertThresholds) {
	s.mu.Lock()
	s.thresholds = t
	s.mu.Unlock()
	s.notifyManager.SetThresholds(t)
}

func (s *DashboardService) current() (*enviromoon.Client, *poller.Poller) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.poller
}

func (s *DashboardService) onSnapshot(snap poller.Snapshot) {
	s.mu.RLock()
	a := s.app
	t := s.tray
	thresholds := s.thresholds
	s.mu.RUnlock()

	if len(snap.Series) == 0 && !snap.Latest.IsPlaceholder() {
		// History unavailable this cycle; extend the sparkline with the live value
		s.iconGen.AddHistory(snap.Latest.Temperature)
	} else {
		s.iconGen.SetHistory(snap.Series, models.ChannelTemperature)
	}

	if t != nil {
		level := tray.Classify(snap.Latest, thresholds, snap.Connectivity)
		if snap.Phase == poller.PhaseError {
			t.SetLabel("ERR")
		} else {
			t.SetLabel(tray.Label(snap.Stats))
		}
		t.SetTooltip(s.iconGen.Tooltip(snap.Stats, snap.Connectivity, snap.LastUpdated, time.Now()))
		if icon := s.iconGen.GenerateIcon(tray.IconText(snap.Stats), snap.Stats.Temperature.Trend, level); icon != nil {
			t.SetIcon(icon)
		}
	}

	if a != nil {
		a.Event.Emit(EventUpdate, snap)
		if snap.Phase == poller.PhaseError {
			a.Event.Emit(EventError, snap.Error)
		}
	}
}

// Public methods for Binding

// GetSnapshot returns the current dashboard state
func (s *DashboardService) GetSnapshot() poller.Snapshot {
	_, p := s.current()
	if p == nil {
		return poller.Snapshot{Phase: poller.PhaseIdle, Connectivity: models.ConnectivityUnknown}
	}
	return p.Snapshot()
}

// Refresh runs a fetch cycle immediately
func (s *DashboardService) Refresh(ctx context.Context) (poller.Snapshot, error) {
	_, p := s.current()
	if p == nil {
		return poller.Snapshot{}, ErrNotStarted
	}
	return p.Refresh(ctx)
}

// GetTimeRanges returns the selectable history windows
func (s *DashboardService) GetTimeRanges() []models.TimeRange {
	return models.TimeRanges
}

// SetRange switches the displayed history window
func (s *DashboardService) SetRange(ctx context.Context, key string) (poller.Snapshot, error) {
	rng, err := models.LookupTimeRange(key)
	if err != nil {
		return poller.Snapshot{}, err
	}
	_, p := s.current()
	if p == nil {
		return poller.Snapshot{}, ErrNotStarted
	}
	return p.SetRange(ctx, rng)
}

// GetChartData returns the downsampled chart points for the current series
func (s *DashboardService) GetChartData() chart.Data {
	snap := s.GetSnapshot()
	return chart.Shape(snap.Series, snap.Range, time.Local)
}

// GetDeviceSettings fetches the device configuration
func (s *DashboardService) GetDeviceSettings(ctx context.Context) (*models.DeviceSettings, error) {
	client, _ := s.current()
	if client == nil {
		return nil, ErrNotStarted
	}
	settings, err := client.Settings(ctx)
	if err != nil {
		return nil, err
	}
	s.setThresholds(&settings.AlertThresholds)
	return settings, nil
}

// GetConnectionInfo returns serial link statistics
func (s *DashboardService) GetConnectionInfo(ctx context.Context) *models.ConnectionInfo {
	client, _ := s.current()
	if client == nil {
		return &models.ConnectionInfo{}
	}
	return client.Connection(ctx)
}

// UpdateSamplingInterval changes how often the device samples
func (s *DashboardService) UpdateSamplingInterval(ctx context.Context, seconds int) error {
	client, _ := s.current()
	if client == nil {
		return ErrNotStarted
	}
	return client.UpdateSamplingInterval(ctx, seconds)
}

// UpdateCalibration sends sensor offsets to the device
func (s *DashboardService) UpdateCalibration(ctx context.Context, cal models.Calibration) error {
	client, _ := s.current()
	if client == nil {
		return ErrNotStarted
	}
	return client.UpdateCalibration(ctx, cal)
}

// UpdateAlertThresholds stores new alert bounds on the device
func (s *DashboardService) UpdateAlertThresholds(ctx context.Context, thresholds models.AlertThresholds) error {
	client, _ := s.current()
	if client == nil {
		return ErrNotStarted
	}
	if err := client.UpdateAlertThresholds(ctx, thresholds); err != nil {
		return err
	}
	s.setThresholds(&thresholds)
	return nil
}

// TriggerRead asks the device for an immediate reading and refreshes
func (s *DashboardService) TriggerRead(ctx context.Context) (poller.Snapshot, error) {
	client, p := s.current()
	if client == nil {
		return poller.Snapshot{}, ErrNotStarted
	}
	if err := client.TriggerRead(ctx); err != nil {
		return poller.Snapshot{}, err
	}
	return p.Refresh(ctx)
}

// Control sends a device command
func (s *DashboardService) Control(ctx context.Context, action string) error {
	client, _ := s.current()
	if client == nil {
		return ErrNotStarted
	}
	return client.Control(ctx, models.ControlAction(action))
}

// SetSensorEnabled toggles a sensor on the device
func (s *DashboardService) SetSensorEnabled(ctx context.Context, sensor string, enabled bool) error {
	client, _ := s.current()
	if client == nil {
		return ErrNotStarted
	}
	return client.SetSensorEnabled(ctx, models.Sensor(sensor), enabled)
}

// ExportData exports the given range as CSV
func (s *DashboardService) ExportData(ctx context.Context, rangeKey string) (*ExportResult, error) {
	rng, err := models.LookupTimeRange(rangeKey)
	if err != nil {
		return nil, err
	}
	client, _ := s.current()
	if client == nil {
		return nil, ErrNotStarted
	}

	start, end := rng.Span(time.Now())
	csv, err := client.Export(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		CSV:     csv,
		Rows:    enviromoon.ExportRows(csv),
		Summary: enviromoon.ExportSummary(csv),
	}, nil
}

// TestConnection checks that a backend answers at url
func (s *DashboardService) TestConnection(ctx context.Context, url string) error {
	if url == "" {
		url = s.env.APIURL
	}
	client := enviromoon.NewClient(enviromoon.Options{BaseURL: url, Timeout: 5 * time.Second})
	if err := client.TestConnection(ctx); err != nil {
		return fmt.Errorf("connection to %s failed: %w", url, err)
	}
	return nil
}

// GetSettings returns a copy of the application settings
func (s *DashboardService) GetSettings() *models.Settings {
	settings := s.settings.Clone()
	if s.autostartOn != nil {
		// The entry may have been removed outside the app
		if enabled, err := s.autostartOn(); err != nil {
			log.Printf("WARN: checking autostart: %v", err)
		} else {
			settings.AutoStart = enabled
		}
	}
	return settings
}

// SaveSettings stores the settings and applies them to the running loop
func (s *DashboardService) SaveSettings(ctx context.Context, settings *models.Settings) error {
	oldURL := s.settings.EffectiveURL(s.env.APIURL)

	s.settings.Update(settings)
	s.settings.Normalize()

	if s.persist {
		if err := s.settings.Save(); err != nil {
			return err
		}
		if err := autostart.Sync(autostart.Desktop, settings.AutoStart); err != nil {
			log.Printf("WARN: updating autostart: %v", err)
		}
	}

	s.notifyManager.UpdateSettings(s.settings)

	_, p := s.current()
	if p == nil {
		return nil
	}

	if s.settings.EffectiveURL(s.env.APIURL) != oldURL {
		s.stop()
		s.iconGen.ClearHistory()
		s.notifyManager.ClearAlertState("")
		s.mu.RLock()
		parent := s.parent
		s.mu.RUnlock()
		s.start(parent)
		return nil
	}

	current := s.settings.Clone()
	if err := p.SetInterval(ctx, time.Duration(current.RefreshInterval)*time.Second); err != nil {
		return err
	}
	if p.Snapshot().Range.Key != current.DefaultRange {
		_, err := p.SetRange(ctx, models.MustTimeRange(current.DefaultRange))
		return err
	}
	return nil
}

// SendTestNotification sends a test notification
func (s *DashboardService) SendTestNotification() error {
	return s.notifyManager.SendTestNotification()
}
