package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/alamin-nifty/enviromoon-mobile/internal/config"
	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
)

// StatePayload is the retained message published after every cycle
type StatePayload struct {
	Phase        poller.Phase        `json:"phase"`
	Connectivity models.Connectivity `json:"connectivity"`
	Reading      *models.Reading     `json:"reading"`
	Stats        models.Stats        `json:"stats"`
	Range        string              `json:"range"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// ConnectMQTT connects to the broker with exponential backoff
func ConnectMQTT(ctx context.Context, cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	client := mqtt.NewClient(opts)
	b := backoff.WithMaxRetries(bo, uint64(retries-1)) //nolint:gosec // retries >= 1
	if err := connectWithRetry(ctx, client, b); err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	log.Printf("INFO: connected to MQTT broker at %s", cfg.Broker)
	return client, nil
}

// connectWithRetry retries Connect on a single client until it succeeds or b gives up
func connectWithRetry(ctx context.Context, client mqtt.Client, b backoff.BackOff) error {
	return backoff.Retry(func() error {
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("WARN: failed to connect to MQTT broker: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(b, ctx))
}

// MQTTPublisher publishes the dashboard state as a retained message
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// NewMQTTPublisher creates a publisher writing to <prefix>/state
func NewMQTTPublisher(client mqtt.Client, prefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: prefix + "/state"}
}

// Topic returns the state topic
func (p *MQTTPublisher) Topic() string {
	return p.topic
}

// Observe publishes the snapshot without waiting for the broker
func (p *MQTTPublisher) Observe(snap poller.Snapshot) {
	payload, err := json.Marshal(StatePayload{
		Phase:        snap.Phase,
		Connectivity: snap.Connectivity,
		Reading:      snap.Latest,
		Stats:        snap.Stats,
		Range:        snap.Range.Key,
		UpdatedAt:    snap.LastUpdated,
	})
	if err != nil {
		log.Printf("ERROR: encoding MQTT state: %v", err)
		return
	}

	token := p.client.Publish(p.topic, 1, true, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("WARN: MQTT publish failed: %v", token.Error())
		}
	}()
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		log.Println("INFO: MQTT connection closed")
	}
}
