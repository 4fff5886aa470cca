package enviromoon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

func newTestClient(url string) *Client {
	return NewClient(Options{BaseURL: url, Timeout: 2 * time.Second})
}

// unreachableURL returns the address of a server that has already shut down
func unreachableURL() string {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	client := NewClient(Options{BaseURL: "http://pi.local:3000/api/"})

	if client.BaseURL() != "http://pi.local:3000/api" {
		t.Errorf("baseURL = %s, should not have trailing slash", client.BaseURL())
	}
}

func TestClient_FetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sensors/latest" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"temperature":23.4,"humidity":45.5,"light":312,"timestamp":"2025-05-01T10:00:00.000Z"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL + "/api")
	reading, err := client.FetchLatest(context.Background())

	if err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if reading.Temperature != 23.4 {
		t.Errorf("Temperature = %v, want 23.4", reading.Temperature)
	}
	if reading.LightLevel() != 312 {
		t.Errorf("Light = %d, want 312", reading.LightLevel())
	}
}

func TestClient_FetchLatest_Array(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"temperature":19,"humidity":60,"light":900}]`))
	}))
	defer server.Close()

	reading, err := newTestClient(server.URL).FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest() error = %v", err)
	}
	if reading.Temperature != 19 {
		t.Errorf("Temperature = %v, want 19", reading.Temperature)
	}
}

func TestClient_LatestReading_Unreachable(t *testing.T) {
	client := newTestClient(unreachableURL())
	reading := client.LatestReading(context.Background())

	if reading == nil {
		t.Fatal("LatestReading() returned nil")
	}
	if reading.Message != "Not Connected" {
		t.Errorf("Message = %q, want Not Connected", reading.Message)
	}
	if reading.Temperature != 0 || reading.Humidity != 0 || reading.Light != 0 {
		t.Error("Fallback reading should be zeroed")
	}
}

func TestClient_ReadFallbacks_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("serial port closed"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	if readings := client.Range(ctx, time.Now().Add(-time.Hour), time.Now(), 10); readings == nil || len(readings) != 0 {
		t.Errorf("Range() = %v, want empty non-nil series", readings)
	}
	if status := client.Status(ctx); status.Connected {
		t.Error("Status() fallback should be disconnected")
	}
	if info := client.Connection(ctx); info.Connected {
		t.Error("Connection() fallback should be disconnected")
	}
	if _, err := client.Settings(ctx); err == nil {
		t.Error("Settings() should propagate errors")
	}
}

func TestClient_ErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("device busy"))
	}))
	defer server.Close()

	err := newTestClient(server.URL).TriggerRead(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", apiErr.StatusCode)
	}
	if apiErr.Body != "device busy" {
		t.Errorf("Body = %q, want device busy", apiErr.Body)
	}
	if StatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("StatusCode(err) = %d, want 503", StatusCode(err))
	}
}

func TestClient_FetchRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sensors/range" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start") != "2025-05-01T09:00:00.000Z" {
			t.Errorf("start = %s", q.Get("start"))
		}
		if q.Get("end") != "2025-05-01T10:00:00.000Z" {
			t.Errorf("end = %s", q.Get("end"))
		}
		if q.Get("limit") != "50" {
			t.Errorf("limit = %s, want 50", q.Get("limit"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"temperature":21,"humidity":40,"light":100,"timestamp":"2025-05-01T10:00:00.000Z"},
			{"temperature":null,"humidity":41,"light":110,"timestamp":"2025-05-01T09:59:00.000Z"},
			{"temperature":20,"humidity":42,"light":120,"timestamp":"2025-05-01T09:58:00.000Z"}
		]`))
	}))
	defer server.Close()

	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	readings, err := newTestClient(server.URL).FetchRange(context.Background(), start, end, 50)

	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("Got %d readings, want 3", len(readings))
	}
	if !math.IsNaN(readings[1].Temperature) {
		t.Errorf("Null temperature should decode as NaN, got %v", readings[1].Temperature)
	}
}

func TestClient_FetchRange_NoLimitWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("limit") {
			t.Error("limit should be omitted when not set")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"temperature":21,"humidity":40,"light":100}]}`))
	}))
	defer server.Close()

	readings, err := newTestClient(server.URL).FetchRange(context.Background(), time.Now().Add(-time.Hour), time.Now(), 0)
	if err != nil {
		t.Fatalf("FetchRange() error = %v", err)
	}
	if len(readings) != 1 {
		t.Errorf("Got %d readings, want 1", len(readings))
	}
}

func TestClient_FetchStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/status" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(models.DeviceStatus{
			Connected:    true,
			Uptime:       3600,
			ReadingCount: 42,
			Port:         "/dev/ttyUSB0",
		})
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus() error = %v", err)
	}
	if !status.Connected || status.Port != "/dev/ttyUSB0" || status.ReadingCount != 42 {
		t.Errorf("Unexpected status %+v", status)
	}
}

func TestClient_Settings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"temperatureOffset":-0.5,"humidityOffset":2,"lightThreshold":600,
			"alertThresholds":{"temperature":{"min":15,"max":30},"humidity":{"min":30,"max":70}}}`))
	}))
	defer server.Close()

	settings, err := newTestClient(server.URL).Settings(context.Background())
	if err != nil {
		t.Fatalf("Settings() error = %v", err)
	}
	if settings.LightThreshold != 600 {
		t.Errorf("LightThreshold = %d, want 600", settings.LightThreshold)
	}
	if settings.AlertThresholds.Temperature.Max != 30 {
		t.Errorf("Temperature max = %v, want 30", settings.AlertThresholds.Temperature.Max)
	}
}

func TestClient_WriteValidation_NoRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	if err := client.UpdateSamplingInterval(ctx, 0); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("UpdateSamplingInterval(0) error = %v, want ErrInvalidInterval", err)
	}
	if err := client.UpdateSamplingInterval(ctx, -5); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("UpdateSamplingInterval(-5) error = %v, want ErrInvalidInterval", err)
	}
	if err := client.Control(ctx, "explode"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Control() error = %v, want ErrInvalidRequest", err)
	}
	if err := client.SetSensorEnabled(ctx, "co2", true); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("SetSensorEnabled() error = %v, want ErrInvalidRequest", err)
	}
	if err := client.UpdateCalibration(ctx, models.Calibration{LightThreshold: 5000}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("UpdateCalibration() error = %v, want ErrInvalidRequest", err)
	}
	bad := models.AlertThresholds{Temperature: models.Range{Min: 30, Max: 10}, Humidity: models.Range{Min: 0, Max: 100}}
	if err := client.UpdateAlertThresholds(ctx, bad); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("UpdateAlertThresholds() error = %v, want ErrInvalidRequest", err)
	}

	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("Server received %d requests, want 0", n)
	}
}

func TestClient_WriteRequests(t *testing.T) {
	type captured struct {
		method, path, contentType string
		body                      map[string]any
	}
	var got []captured

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{method: r.Method, path: r.URL.Path, contentType: r.Header.Get("Content-Type")}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &c.body)
		}
		got = append(got, c)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	if err := client.UpdateSamplingInterval(ctx, 30); err != nil {
		t.Fatalf("UpdateSamplingInterval() error = %v", err)
	}
	if err := client.Control(ctx, models.ActionLEDOn); err != nil {
		t.Fatalf("Control() error = %v", err)
	}
	if err := client.SetSensorEnabled(ctx, models.SensorLight, false); err != nil {
		t.Fatalf("SetSensorEnabled() error = %v", err)
	}
	thresholds := models.AlertThresholds{
		Temperature: models.Range{Min: 10, Max: 35},
		Humidity:    models.Range{Min: 20, Max: 80},
	}
	if err := client.UpdateAlertThresholds(ctx, thresholds); err != nil {
		t.Fatalf("UpdateAlertThresholds() error = %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("Got %d requests, want 4", len(got))
	}
	if got[0].path != "/settings/sampling-interval" || got[0].body["interval"] != float64(30) {
		t.Errorf("Sampling interval request = %+v", got[0])
	}
	if got[0].contentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got[0].contentType)
	}
	if got[1].path != "/device/control" || got[1].body["action"] != "led_on" {
		t.Errorf("Control request = %+v", got[1])
	}
	if got[2].path != "/sensors/light/disable" || got[2].method != http.MethodPost {
		t.Errorf("Sensor toggle request = %+v", got[2])
	}
	temp, ok := got[3].body["temperature"].(map[string]any)
	if got[3].path != "/device/alert-thresholds" || !ok || temp["max"] != float64(35) {
		t.Errorf("Thresholds request = %+v", got[3])
	}
}

func TestClient_ReadBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, BreakerFailures: 2, BreakerCooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if reading := client.LatestReading(ctx); !reading.IsPlaceholder() {
			t.Fatal("Expected fallback reading")
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Server received %d requests, want 2 before the breaker opened", n)
	}

	// Writes bypass the read breaker
	_ = client.TriggerRead(ctx)
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Write should reach the server, got %d requests", n)
	}
}

func TestClient_Export(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/export" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("timestamp,temperature,humidity,light\n2025-05-01T10:00:00Z,21,40,100\n2025-05-01T10:01:00Z,21.1,40,101\n"))
	}))
	defer server.Close()

	csv, err := newTestClient(server.URL).Export(context.Background(), time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if ExportRows(csv) != 2 {
		t.Errorf("ExportRows() = %d, want 2", ExportRows(csv))
	}
	if ExportSummary(csv) != "Exported 2 readings" {
		t.Errorf("ExportSummary() = %q", ExportSummary(csv))
	}
}

func TestExportRows(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		expected int
	}{
		{"Empty", "", 0},
		{"Header only", "timestamp,temperature\n", 0},
		{"No trailing newline", "h\na\nb", 2},
		{"Blank lines", "h\n\na\n\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExportRows(tt.csv); got != tt.expected {
				t.Errorf("ExportRows() = %d, want %d", got, tt.expected)
			}
		})
	}
}
