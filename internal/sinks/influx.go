// Package sinks forwards poller snapshots to external systems
package sinks

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/alamin-nifty/enviromoon-mobile/internal/config"
	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
)

// Measurement is the InfluxDB measurement readings are written to
const Measurement = "environment"

const influxQueueSize = 64

// PointWriter is the part of the InfluxDB write API the mirror needs
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// InfluxMirror writes each new latest reading to InfluxDB
type InfluxMirror struct {
	writer PointWriter
	client influxdb2.Client
	device string

	queue  chan models.Reading
	lastTS string
}

// NewInfluxMirror connects to InfluxDB using a blocking write API
func NewInfluxMirror(cfg config.InfluxConfig, device string) (*InfluxMirror, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("influx config incomplete")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	m := NewInfluxMirrorWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), device)
	m.client = client
	return m, nil
}

// NewInfluxMirrorWithWriter creates a mirror on top of an existing writer
func NewInfluxMirrorWithWriter(w PointWriter, device string) *InfluxMirror {
	return &InfluxMirror{
		writer: w,
		device: device,
		queue:  make(chan models.Reading, influxQueueSize),
	}
}

// Observe queues the snapshot's latest reading if it has not been written yet
func (m *InfluxMirror) Observe(snap poller.Snapshot) {
	r := snap.Latest
	if r == nil || r.IsPlaceholder() || r.Timestamp == "" || r.Timestamp == m.lastTS {
		return
	}
	m.lastTS = r.Timestamp

	select {
	case m.queue <- *r:
	default:
		log.Printf("WARN: influx queue full, dropping reading %s", r.Timestamp)
	}
}

// Run writes queued readings until ctx is cancelled
func (m *InfluxMirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-m.queue:
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := m.writer.WritePoint(wctx, ReadingPoint(r, m.device)); err != nil {
				log.Printf("ERROR: influx write failed: %v", err)
			}
			cancel()
		}
	}
}

// Close releases the InfluxDB client
func (m *InfluxMirror) Close() {
	if m.client != nil {
		m.client.Close()
	}
}

// ReadingPoint converts a reading to a point, omitting missing channels
func ReadingPoint(r models.Reading, device string) *write.Point {
	t, err := r.Time()
	if err != nil {
		t = time.Now()
	}

	tags := map[string]string{}
	if device != "" {
		tags["device"] = device
	}

	fields := map[string]interface{}{}
	for _, ch := range models.Channels {
		v := r.Value(ch)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if ch == models.ChannelLight {
			fields[string(ch)] = r.LightLevel()
			continue
		}
		fields[string(ch)] = v
	}

	return influxdb2.NewPoint(Measurement, tags, fields, t)
}
