// Package config loads runtime configuration from the environment
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the backend address used when nothing else is configured
const DefaultAPIURL = "http://localhost:3000/api"

// Config holds the application's configuration
type Config struct {
	APIURL          string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	HTTPAddr        string
	MetricsAddr     string
	CORSOrigins     []string

	BreakerFailures int
	BreakerCooldown time.Duration

	Influx InfluxConfig
	MQTT   MQTTConfig
}

// InfluxConfig configures the optional InfluxDB mirror
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled returns true when enough settings are present to connect
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Token != "" && c.Org != "" && c.Bucket != ""
}

// MQTTConfig configures the optional MQTT publisher
type MQTTConfig struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	MaxRetries  int
}

// Enabled returns true when a broker is configured
func (c MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

// Load reads the optional .env file and then the environment
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("INFO: No .env file found, relying on system environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (Config, error) {
	refresh, err := intEnv("ENVIROMOON_REFRESH_SECONDS", 15)
	if err != nil {
		return Config{}, err
	}
	if refresh < 10 || refresh > 600 {
		return Config{}, fmt.Errorf("ENVIROMOON_REFRESH_SECONDS must be within 10-600, got %d", refresh)
	}
	timeout, err := intEnv("ENVIROMOON_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	failures, err := intEnv("ENVIROMOON_BREAKER_FAILURES", 5)
	if err != nil {
		return Config{}, err
	}
	cooldown, err := intEnv("ENVIROMOON_BREAKER_COOLDOWN_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	retries, err := intEnv("MQTT_MAX_RETRIES", 5)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIURL:          stringEnv("ENVIROMOON_API_URL", DefaultAPIURL),
		RefreshInterval: time.Duration(refresh) * time.Second,
		RequestTimeout:  time.Duration(timeout) * time.Second,
		HTTPAddr:        stringEnv("ENVIROMOON_HTTP_ADDR", ":8080"),
		MetricsAddr:     os.Getenv("ENVIROMOON_METRICS_ADDR"),
		CORSOrigins:     listEnv("ENVIROMOON_CORS_ORIGINS", []string{"*"}),
		BreakerFailures: failures,
		BreakerCooldown: time.Duration(cooldown) * time.Second,
		Influx: InfluxConfig{
			URL:    os.Getenv("INFLUX_URL"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    os.Getenv("INFLUX_ORG"),
			Bucket: stringEnv("INFLUX_BUCKET", "enviromoon"),
		},
		MQTT: MQTTConfig{
			Broker:      os.Getenv("MQTT_BROKER"),
			Username:    os.Getenv("MQTT_USERNAME"),
			Password:    os.Getenv("MQTT_PASSWORD"),
			ClientID:    stringEnv("MQTT_CLIENT_ID", "enviromoon"),
			TopicPrefix: strings.TrimSuffix(stringEnv("MQTT_TOPIC_PREFIX", "enviromoon"), "/"),
			MaxRetries:  retries,
		},
	}

	if cfg.Influx.URL != "" && !cfg.Influx.Enabled() {
		return Config{}, fmt.Errorf("InfluxDB configuration is incomplete. Please set INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG and INFLUX_BUCKET")
	}

	return cfg, nil
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func listEnv(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
