// Command enviromoond polls the EnviroMoon backend without a desktop shell and
// serves the dashboard API for the mobile frontend
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alamin-nifty/enviromoon-mobile/internal/config"
	"github.com/alamin-nifty/enviromoon-mobile/internal/enviromoon"
	"github.com/alamin-nifty/enviromoon-mobile/internal/metrics"
	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/poller"
	"github.com/alamin-nifty/enviromoon-mobile/internal/server"
	"github.com/alamin-nifty/enviromoon-mobile/internal/sinks"
)

const shutdownTimeout = 10 * time.Second

func main() {
	addr := flag.String("addr", "", "listen address (overrides ENVIROMOON_HTTP_ADDR)")
	rangeKey := flag.String("range", models.DefaultTimeRange, "initial history range (1h, 6h, 24h, 7d, 30d)")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	rng, err := models.LookupTimeRange(*rangeKey)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, rng); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	log.Println("INFO: enviromoond stopped")
}

func run(ctx context.Context, cfg config.Config, rng models.TimeRange) error {
	client := enviromoon.NewClient(enviromoon.Options{
		BaseURL:         cfg.APIURL,
		Timeout:         cfg.RequestTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
	})

	opts := poller.DefaultOptions()
	opts.Interval = cfg.RefreshInterval
	opts.Range = rng
	p := poller.New(client, opts)

	collector := metrics.NewCollector()
	p.OnUpdate(collector.Observe)

	if cfg.Influx.Enabled() {
		mirror, err := sinks.NewInfluxMirror(cfg.Influx, hostname())
		if err != nil {
			return err
		}
		defer mirror.Close()
		p.OnUpdate(mirror.Observe)
		go mirror.Run(ctx)
		log.Printf("INFO: mirroring readings to InfluxDB at %s", cfg.Influx.URL)
	}

	if cfg.MQTT.Enabled() {
		mqttClient, err := sinks.ConnectMQTT(ctx, cfg.MQTT)
		if err != nil {
			return err
		}
		publisher := sinks.NewMQTTPublisher(mqttClient, cfg.MQTT.TopicPrefix)
		defer publisher.Close()
		p.OnUpdate(publisher.Observe)
		log.Printf("INFO: publishing state to %s on %s", publisher.Topic(), cfg.MQTT.Broker)
	}

	defaults := models.DefaultSettings()
	srvOpts := server.Options{
		AllowedOrigins: cfg.CORSOrigins,
		ChartColors: map[models.Channel]string{
			models.ChannelTemperature: defaults.ChartColorTemperature,
			models.ChannelHumidity:    defaults.ChartColorHumidity,
			models.ChannelLight:       defaults.ChartColorLight,
		},
	}

	servers := []*http.Server{}
	if cfg.MetricsAddr != "" {
		servers = append(servers, newHTTPServer(cfg.MetricsAddr, collector.Handler()))
	} else {
		srvOpts.Metrics = collector.Handler()
	}
	api := server.New(p, client, srvOpts)
	servers = append(servers, newHTTPServer(cfg.HTTPAddr, api.Handler()))

	pollDone := make(chan error, 1)
	go func() { pollDone <- p.Run(ctx) }()

	serveErr := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Printf("INFO: listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}(srv)
	}
	log.Printf("INFO: polling %s every %s", client.BaseURL(), cfg.RefreshInterval)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARN: shutting down %s: %v", srv.Addr, err)
		}
	}

	if runErr == nil {
		if err := <-pollDone; err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}
	return runErr
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "enviromoon"
	}
	return name
}
