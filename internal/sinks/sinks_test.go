package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
)

type recordingWriter struct {
	mu     sync.Mutex
	points []*write.Point
	wrote  chan struct{}
}

func (w *recordingWriter) WritePoint(_ context.Context, point ...*write.Point) error {
	w.mu.Lock()
	w.points = append(w.points, point...)
	w.mu.Unlock()
	w.wrote <- struct{}{}
	return nil
}

func fieldKeys(p *write.Point) map[string]bool {
	keys := map[string]bool{}
	for _, f := range p.FieldList() {
		keys[f.Key] = true
	}
	return keys
}

func TestReadingPoint(t *testing.T) {
	r := models.Reading{
		Temperature: 22.1,
		Humidity:    math.NaN(),
		Light:       512,
		Timestamp:   "2025-05-01T10:00:00.000Z",
	}

	p := ReadingPoint(r, "lab")

	if p.Name() != Measurement {
		t.Errorf("Name() = %s, want %s", p.Name(), Measurement)
	}
	want := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	if !p.Time().Equal(want) {
		t.Errorf("Time() = %v, want %v", p.Time(), want)
	}
	keys := fieldKeys(p)
	if !keys["temperature"] || !keys["light"] {
		t.Errorf("Missing fields in %v", keys)
	}
	if keys["humidity"] {
		t.Error("NaN humidity should be omitted")
	}
	if len(p.TagList()) != 1 || p.TagList()[0].Value != "lab" {
		t.Errorf("Unexpected tags %v", p.TagList())
	}
}

func TestInfluxMirror_DeduplicatesByTimestamp(t *testing.T) {
	w := &recordingWriter{wrote: make(chan struct{}, 8)}
	m := NewInfluxMirrorWithWriter(w, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	first := &models.Reading{Temperature: 20, Humidity: 40, Light: 100, Timestamp: "2025-05-01T10:00:00.000Z"}
	second := &models.Reading{Temperature: 21, Humidity: 41, Light: 101, Timestamp: "2025-05-01T10:00:30.000Z"}

	m.Observe(poller.Snapshot{Latest: first})
	m.Observe(poller.Snapshot{Latest: first})
	m.Observe(poller.Snapshot{Latest: models.NotConnectedReading()})
	m.Observe(poller.Snapshot{Latest: second})

	for i := 0; i < 2; i++ {
		select {
		case <-w.wrote:
		case <-time.After(2 * time.Second):
			t.Fatalf("Only %d points written", i)
		}
	}

	select {
	case <-w.wrote:
		t.Error("Duplicate reading was written")
	case <-time.After(50 * time.Millisecond):
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.points) != 2 {
		t.Errorf("Wrote %d points, want 2", len(w.points))
	}
}

type fakeToken struct{}

func (fakeToken) Wait() bool                       { return true }
func (fakeToken) WaitTimeout(_ time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type errToken struct {
	fakeToken
	err error
}

func (t errToken) Error() error { return t.err }

// flakyMQTT fails the first failures connection attempts
type flakyMQTT struct {
	mqtt.Client
	failures int
	attempts int
}

func (f *flakyMQTT) Connect() mqtt.Token {
	f.attempts++
	if f.attempts <= f.failures {
		return errToken{err: errors.New("connection refused")}
	}
	return fakeToken{}
}

func TestConnectWithRetry(t *testing.T) {
	tests := []struct {
		name             string
		failures         int
		retries          uint64
		expectedAttempts int
		wantErr          bool
	}{
		{"First attempt", 0, 3, 1, false},
		{"Recovers on the same client", 2, 3, 3, false},
		{"Gives up", 5, 2, 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &flakyMQTT{failures: tt.failures}
			err := connectWithRetry(context.Background(), client, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, tt.retries))

			if (err != nil) != tt.wantErr {
				t.Errorf("connectWithRetry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if client.attempts != tt.expectedAttempts {
				t.Errorf("Connect called %d times, want %d", client.attempts, tt.expectedAttempts)
			}
		})
	}
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTT struct {
	mqtt.Client
	mu   sync.Mutex
	sent []published
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, published{topic, qos, retained, payload.([]byte)})
	return fakeToken{}
}

func TestMQTTPublisher_Observe(t *testing.T) {
	client := &fakeMQTT{}
	p := NewMQTTPublisher(client, "home/lab")

	if p.Topic() != "home/lab/state" {
		t.Errorf("Topic() = %s, want home/lab/state", p.Topic())
	}

	p.Observe(poller.Snapshot{
		Phase:        poller.PhaseSuccess,
		Connectivity: models.ConnectivityConnected,
		Latest:       &models.Reading{Temperature: 19.5, Humidity: 55, Light: 700},
		Range:        models.MustTimeRange("1h"),
	})

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.sent) != 1 {
		t.Fatalf("Published %d messages, want 1", len(client.sent))
	}
	msg := client.sent[0]
	if !msg.retained || msg.qos != 1 {
		t.Errorf("Message should be retained with QoS 1, got %+v", msg)
	}

	var state StatePayload
	if err := json.Unmarshal(msg.payload, &state); err != nil {
		t.Fatalf("Invalid payload: %v", err)
	}
	if state.Reading.Temperature != 19.5 || state.Range != "1h" {
		t.Errorf("Unexpected state %+v", state)
	}
	if state.Connectivity != models.ConnectivityConnected {
		t.Errorf("Connectivity = %s, want connected", state.Connectivity)
	}
}
