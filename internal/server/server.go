// Package server exposes the dashboard as a JSON/PNG HTTP API for the mobile frontend
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/alamin-nifty/enviromoon-mobile/internal/chart"
	"github.com/alamin-nifty/enviromoon-mobile/internal/enviromoon"
	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
)

// Dashboard is the polling state served by the API
type Dashboard interface {
	Snapshot() poller.Snapshot
	Refresh(ctx context.Context) (poller.Snapshot, error)
	SetRange(ctx context.Context, rng models.TimeRange) (poller.Snapshot, error)
}

// Device is the backend client used for device reads and commands
type Device interface {
	Settings(ctx context.Context) (*models.DeviceSettings, error)
	Connection(ctx context.Context) *models.ConnectionInfo
	UpdateSamplingInterval(ctx context.Context, seconds int) error
	UpdateCalibration(ctx context.Context, cal models.Calibration) error
	UpdateAlertThresholds(ctx context.Context, thresholds models.AlertThresholds) error
	TriggerRead(ctx context.Context) error
	Control(ctx context.Context, action models.ControlAction) error
	SetSensorEnabled(ctx context.Context, sensor models.Sensor, enabled bool) error
	Export(ctx context.Context, start, end time.Time) (string, error)
}

// Options configures a Server
type Options struct {
	AllowedOrigins []string
	Metrics        http.Handler // Served at /metrics when set
	Location       *time.Location
	ChartColors    map[models.Channel]string
}

// Server routes API requests to the dashboard and device
type Server struct {
	dashboard Dashboard
	device    Device
	opts      Options
	now       func() time.Time
}

// New creates a server
func New(dashboard Dashboard, device Device, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{dashboard: dashboard, device: device, opts: opts, now: time.Now}
}

// Router returns the API routes
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/chart", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/chart/{channel:[a-z]+}.png", s.handleChartPNG).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/range", s.handleRange).Methods(http.MethodPut)

	api.HandleFunc("/device/settings", s.handleDeviceSettings).Methods(http.MethodGet)
	api.HandleFunc("/device/connection", s.handleConnection).Methods(http.MethodGet)
	api.HandleFunc("/device/sampling-interval", s.handleSamplingInterval).Methods(http.MethodPost)
	api.HandleFunc("/device/calibration", s.handleCalibration).Methods(http.MethodPost)
	api.HandleFunc("/device/alert-thresholds", s.handleAlertThresholds).Methods(http.MethodPost)
	api.HandleFunc("/device/control", s.handleControl).Methods(http.MethodPost)

	api.HandleFunc("/sensors/read", s.handleTriggerRead).Methods(http.MethodPost)
	api.HandleFunc("/sensors/{sensor}/{state:enable|disable}", s.handleSensorToggle).Methods(http.MethodPost)

	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		RespondWithError(w, NewAPIError(ErrorCodeNotFound, fmt.Sprintf("no route for %s", req.URL.Path), nil, http.StatusNotFound))
	})
	return r
}

// Handler returns the router wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.Router())
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("INFO: %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

type healthResponse struct {
	Status       string              `json:"status"`
	Phase        poller.Phase        `json:"phase"`
	Connectivity models.Connectivity `json:"connectivity"`
	LastUpdated  *time.Time          `json:"lastUpdated,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.dashboard.Snapshot()
	resp := healthResponse{Phase: snap.Phase, Connectivity: snap.Connectivity}
	if !snap.LastUpdated.IsZero() {
		resp.LastUpdated = &snap.LastUpdated
	}

	switch {
	case snap.Phase == poller.PhaseError:
		resp.Status = "down"
	case snap.Connectivity == models.ConnectivityConnected:
		resp.Status = "ok"
	default:
		resp.Status = "degraded"
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.dashboard.Snapshot())
}

func (s *Server) handleChart(w http.ResponseWriter, _ *http.Request) {
	snap := s.dashboard.Snapshot()
	RespondWithJSON(w, http.StatusOK, chart.Shape(snap.Series, snap.Range, s.opts.Location))
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	ch, ok := models.ParseChannel(mux.Vars(r)["channel"])
	if !ok {
		RespondWithError(w, NewAPIError(ErrorCodeNotFound, "unknown channel", mux.Vars(r)["channel"], http.StatusNotFound))
		return
	}

	opts := chart.DefaultRenderOptions()
	if c, ok := s.opts.ChartColors[ch]; ok && c != "" {
		opts.LineColor = c
	}
	for key, dst := range map[string]*int{"width": &opts.Width, "height": &opts.Height} {
		v := r.URL.Query().Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 || n > 2000 {
			RespondWithError(w, NewAPIError(ErrorCodeValidationFailed, key+" must be between 100 and 2000", v, http.StatusBadRequest))
			return
		}
		*dst = n
	}

	snap := s.dashboard.Snapshot()
	img, err := chart.RenderPNG(chart.Shape(snap.Series, snap.Range, s.opts.Location), ch, opts)
	if err != nil {
		RespondWithError(w, NewAPIError(ErrorCodeInternalServerError, "rendering chart failed", err.Error(), http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(img)
}

func (s *Server) respondSnapshot(w http.ResponseWriter, snap poller.Snapshot, err error) {
	if err != nil {
		RespondWithError(w, NewAPIError(ErrorCodeUnavailable, err.Error(), nil, http.StatusServiceUnavailable))
		return
	}
	RespondWithJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dashboard.Refresh(r.Context())
	s.respondSnapshot(w, snap, err)
}

type rangeRequest struct {
	Range string `json:"range"`
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Range == "" {
		RespondWithError(w, NewAPIError(ErrorCodeMissingParameter, "range is required", nil, http.StatusBadRequest))
		return
	}
	rng, err := models.LookupTimeRange(req.Range)
	if err != nil {
		RespondWithError(w, NewAPIError(ErrorCodeValidationFailed, err.Error(), models.TimeRanges, http.StatusBadRequest))
		return
	}

	snap, err := s.dashboard.SetRange(r.Context(), rng)
	s.respondSnapshot(w, snap, err)
}

func (s *Server) handleDeviceSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.device.Settings(r.Context())
	if err != nil {
		RespondWithError(w, fromBackend(err))
		return
	}
	RespondWithJSON(w, http.StatusOK, settings)
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.device.Connection(r.Context()))
}

// respondCommand reports the result of a device write
func respondCommand(w http.ResponseWriter, err error) {
	if err != nil {
		RespondWithError(w, fromBackend(err))
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type intervalRequest struct {
	Interval int `json:"interval"`
}

func (s *Server) handleSamplingInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondCommand(w, s.device.UpdateSamplingInterval(r.Context(), req.Interval))
}

func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	var cal models.Calibration
	if !decodeJSON(w, r, &cal) {
		return
	}
	respondCommand(w, s.device.UpdateCalibration(r.Context(), cal))
}

func (s *Server) handleAlertThresholds(w http.ResponseWriter, r *http.Request) {
	var thresholds models.AlertThresholds
	if !decodeJSON(w, r, &thresholds) {
		return
	}
	respondCommand(w, s.device.UpdateAlertThresholds(r.Context(), thresholds))
}

type controlRequest struct {
	Action models.ControlAction `json:"action"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondCommand(w, s.device.Control(r.Context(), req.Action))
}

func (s *Server) handleTriggerRead(w http.ResponseWriter, r *http.Request) {
	if err := s.device.TriggerRead(r.Context()); err != nil {
		RespondWithError(w, fromBackend(err))
		return
	}
	snap, err := s.dashboard.Refresh(r.Context())
	s.respondSnapshot(w, snap, err)
}

func (s *Server) handleSensorToggle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	enabled := vars["state"] == "enable"
	respondCommand(w, s.device.SetSensorEnabled(r.Context(), models.Sensor(vars["sensor"]), enabled))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("range")
	if key == "" {
		key = s.dashboard.Snapshot().Range.Key
	}
	rng, err := models.LookupTimeRange(key)
	if err != nil {
		RespondWithError(w, NewAPIError(ErrorCodeValidationFailed, err.Error(), nil, http.StatusBadRequest))
		return
	}

	start, end := rng.Span(s.now())
	csv, err := s.device.Export(r.Context(), start, end)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		RespondWithError(w, fromBackend(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="enviromoon-%s-%s.csv"`, rng.Key, end.Format("20060102-150405")))
	w.Header().Set("X-Export-Rows", strconv.Itoa(enviromoon.ExportRows(csv)))
	w.Header().Set("X-Export-Summary", enviromoon.ExportSummary(csv))
	_, _ = w.Write([]byte(csv))
}
