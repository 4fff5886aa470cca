// Package enviromoon provides a client for the EnviroMoon backend REST API
package enviromoon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
)

// isoLayout matches the millisecond UTC timestamps the backend emits
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration

	// BreakerFailures is the number of consecutive read failures that open
	// the read circuit; 0 disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Client handles communication with the EnviroMoon backend
type Client struct {
	baseURL string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a new backend client
func NewClient(opts Options) *Client {
	return newClient(resty.New(), opts)
}

// NewClientWithHTTP creates a client on top of an existing http.Client
func NewClientWithHTTP(hc *http.Client, opts Options) *Client {
	return newClient(resty.NewWithClient(hc), opts)
}

func newClient(rc *resty.Client, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")

	c := &Client{
		baseURL: baseURL,
		http: rc.
			SetBaseURL(baseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Accept", "application/json"),
	}

	if opts.BreakerFailures > 0 {
		cooldown := opts.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		threshold := uint32(opts.BreakerFailures) //nolint:gosec // Bounded by configuration
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "enviromoon-read",
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("INFO: %s breaker %s -> %s", name, from, to)
			},
		})
	}

	return c
}

// BaseURL returns the configured backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest executes a request and returns the response body
func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, body any) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(string(resp.Body())),
		}
	}

	return resp.Body(), nil
}

// read performs a GET through the read circuit breaker
func (c *Client) read(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.breaker == nil {
		return c.doRequest(ctx, http.MethodGet, endpoint, params, nil)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, http.MethodGet, endpoint, params, nil)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// post sends a JSON command; failures always propagate
func (c *Client) post(ctx context.Context, endpoint string, body any) error {
	_, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, body)
	return err
}

// FetchStatus retrieves the device status
func (c *Client) FetchStatus(ctx context.Context) (*models.DeviceStatus, error) {
	body, err := c.read(ctx, "/device/status", nil)
	if err != nil {
		return nil, err
	}

	var status models.DeviceStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}
	return &status, nil
}

// FetchLatest retrieves the most recent reading
func (c *Client) FetchLatest(ctx context.Context) (*models.Reading, error) {
	body, err := c.read(ctx, "/sensors/latest", nil)
	if err != nil {
		return nil, err
	}

	// Latest endpoint returns a single object or array
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		var readings []models.Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return nil, fmt.Errorf("parsing reading: %w", err)
		}
		if len(readings) == 0 {
			return nil, fmt.Errorf("no readings returned")
		}
		return &readings[0], nil
	}

	var reading models.Reading
	if err := json.Unmarshal(body, &reading); err != nil {
		return nil, fmt.Errorf("parsing reading: %w", err)
	}
	return &reading, nil
}

// FetchRange retrieves readings between start and end. A limit of 0 leaves
// the row count to the server default.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time, limit int) ([]models.Reading, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format(isoLayout))
	params.Set("end", end.UTC().Format(isoLayout))
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.read(ctx, "/sensors/range", params)
	if err != nil {
		return nil, err
	}

	readings, err := decodeReadings(body)
	if err != nil {
		return nil, fmt.Errorf("parsing readings: %w", err)
	}
	return readings, nil
}

// decodeReadings accepts a bare array or an object wrapping it in "data"
func decodeReadings(body []byte) ([]models.Reading, error) {
	var readings []models.Reading
	if err := json.Unmarshal(body, &readings); err == nil {
		return readings, nil
	}

	var wrapped struct {
		Data []models.Reading `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

// FetchConnection retrieves serial connection statistics
func (c *Client) FetchConnection(ctx context.Context) (*models.ConnectionInfo, error) {
	body, err := c.read(ctx, "/device/connection", nil)
	if err != nil {
		return nil, err
	}

	var info models.ConnectionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing connection info: %w", err)
	}
	return &info, nil
}

// LatestReading returns the most recent reading, or the "Not Connected"
// placeholder if it cannot be fetched
func (c *Client) LatestReading(ctx context.Context) *models.Reading {
	reading, err := c.FetchLatest(ctx)
	if err != nil {
		log.Printf("WARN: latest reading unavailable, using fallback: %v", err)
	}
	return models.ReadingOrPlaceholder(reading, err)
}

// Range returns readings for a window, or an empty series on failure
func (c *Client) Range(ctx context.Context, start, end time.Time, limit int) []models.Reading {
	readings, err := c.FetchRange(ctx, start, end, limit)
	if err != nil {
		log.Printf("WARN: reading history unavailable, using empty series: %v", err)
	}
	return models.SeriesOrEmpty(readings, err)
}

// Status returns the device status, or a disconnected record on failure
func (c *Client) Status(ctx context.Context) *models.DeviceStatus {
	status, err := c.FetchStatus(ctx)
	if err != nil {
		log.Printf("WARN: device status unavailable, reporting disconnected: %v", err)
	}
	return models.StatusOrDisconnected(status, err)
}

// Connection returns connection statistics, or a disconnected record on failure
func (c *Client) Connection(ctx context.Context) *models.ConnectionInfo {
	info, err := c.FetchConnection(ctx)
	if err != nil {
		log.Printf("WARN: connection info unavailable: %v", err)
		return &models.ConnectionInfo{}
	}
	return info
}

// Settings retrieves the device settings. There is no safe default for
// configuration, so errors propagate.
func (c *Client) Settings(ctx context.Context) (*models.DeviceSettings, error) {
	body, err := c.read(ctx, "/device/settings", nil)
	if err != nil {
		return nil, err
	}

	var settings models.DeviceSettings
	if err := json.Unmarshal(body, &settings); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return &settings, nil
}

// TestConnection tests if the backend answers
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.FetchStatus(ctx)
	return err
}

// UpdateSamplingInterval sets the server-side sampling period in seconds
func (c *Client) UpdateSamplingInterval(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return ErrInvalidInterval
	}
	return c.post(ctx, "/settings/sampling-interval", map[string]int{"interval": seconds})
}

// TriggerRead asks the device for an immediate sample
func (c *Client) TriggerRead(ctx context.Context) error {
	return c.post(ctx, "/sensors/read", nil)
}

// SetSensorEnabled enables or disables a sensor
func (c *Client) SetSensorEnabled(ctx context.Context, sensor models.Sensor, enabled bool) error {
	if !sensor.Valid() {
		return fmt.Errorf("%w: unknown sensor %q", ErrInvalidRequest, sensor)
	}
	state := "disable"
	if enabled {
		state = "enable"
	}
	return c.post(ctx, "/sensors/"+string(sensor)+"/"+state, nil)
}

// UpdateCalibration sends calibration offsets and the light threshold
func (c *Client) UpdateCalibration(ctx context.Context, cal models.Calibration) error {
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return c.post(ctx, "/device/calibration", cal)
}

// UpdateAlertThresholds sends per-channel alert bounds
func (c *Client) UpdateAlertThresholds(ctx context.Context, thresholds models.AlertThresholds) error {
	if err := thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return c.post(ctx, "/device/alert-thresholds", thresholds)
}

// Control sends a device command
func (c *Client) Control(ctx context.Context, action models.ControlAction) error {
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, action)
	}
	return c.post(ctx, "/device/control", map[string]string{"action": string(action)})
}

// Export returns the raw CSV export for a window
func (c *Client) Export(ctx context.Context, start, end time.Time) (string, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format(isoLayout))
	params.Set("end", end.UTC().Format(isoLayout))

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv").
		SetQueryParamsFromValues(params)

	resp, err := req.Get("/data/export")
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(string(resp.Body()))}
	}
	return string(resp.Body()), nil
}

// ExportRows counts data rows in an export, excluding the header
func ExportRows(csv string) int {
	rows := 0
	for _, line := range strings.Split(csv, "\n") {
		if strings.TrimSpace(line) != "" {
			rows++
		}
	}
	return max(0, rows-1)
}

// ExportSummary builds the message shown after an export
func ExportSummary(csv string) string {
	rows := ExportRows(csv)
	if rows == 1 {
		return "Exported 1 reading"
	}
	return fmt.Sprintf("Exported %d readings", rows)
}
