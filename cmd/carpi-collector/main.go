// Command carpi-collector receives telemetry from the car, serves the status
// page and forwards door alerts to the configured notification sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/carpi-telemetry/internal/collector"
	"github.com/sweeney/carpi-telemetry/internal/config"
	"github.com/sweeney/carpi-telemetry/internal/mqtt"
	"github.com/sweeney/carpi-telemetry/internal/notify"
	"github.com/sweeney/carpi-telemetry/internal/status"
	"github.com/sweeney/carpi-telemetry/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadCollector(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Collector) error {
	reg := newRegistry()
	agg := collector.New(cfg.Token, collector.Options{
		HistoryCapacity: cfg.HistoryCapacity,
		ThresholdFeet:   cfg.ThresholdFeet,
		SeenIDs:         cfg.SeenIDs,
		Metrics:         collector.NewMetrics(reg),
	})

	sinks, pub, err := buildSinks(cfg, newPublisher)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyPerMinute, sinks...)

	srv := web.New(cfg.HTTPAddr, agg, web.Options{
		Config: status.Config{
			HTTPAddr:      cfg.HTTPAddr,
			MQTTBroker:    cfg.MQTTBroker,
			NotifySensors: cfg.NotifySensors,
		},
		Alerts:  dispatcher,
		MQTT:    pub,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Printf("started: http=%s notify=%v sinks=%d", ln.Addr(), cfg.NotifySensors, len(sinks))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return serve(srv, ln, dispatcher, pub, sigCh, time.Now)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg
}

func newPublisher(broker, clientID string) (mqtt.Publisher, error) {
	p, err := mqtt.NewRealPublisher(broker, clientID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// buildSinks returns the alert sinks for cfg and the MQTT publisher, which
// is nil when no broker is configured. The publisher carries lifecycle
// events even when door alerts are off.
func buildSinks(cfg config.Collector, connect func(broker, clientID string) (mqtt.Publisher, error)) ([]notify.Sink, mqtt.Publisher, error) {
	var (
		sinks []notify.Sink
		pub   mqtt.Publisher
	)
	if cfg.MQTTBroker != "" {
		p, err := connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return nil, nil, fmt.Errorf("init mqtt: %w", err)
		}
		pub = p
	}
	if !cfg.NotifySensors {
		return nil, pub, nil
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL, notify.DefaultSinkTimeout))
	}
	if pub != nil {
		sinks = append(sinks, pub)
	}
	return sinks, pub, nil
}

// serve runs the HTTP server and alert dispatcher until a signal arrives,
// then drains both and announces the shutdown. pub may be nil.
func serve(srv *web.Server, ln net.Listener, d *notify.Dispatcher, pub mqtt.Publisher, sig <-chan os.Signal, now func() time.Time) error {
	publish := func(event mqtt.SystemEvent) {
		if pub == nil {
			return
		}
		if err := pub.PublishSystem(event); err != nil {
			log.Printf("failed to publish %s event: %v", event.Event, err)
			return
		}
		log.Printf("published %s event", event.Event)
	}
	if pub != nil {
		defer pub.Close()
	}

	dispatched := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(dispatched)
	}()

	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ln)
	}()

	publish(mqtt.SystemEvent{Timestamp: now(), Event: "STARTUP"})

	var reason string
	select {
	case s := <-sig:
		log.Printf("received %v, shutting down", s)
		reason = signalName(s)
	case err := <-served:
		d.Close()
		<-dispatched
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	d.Close()
	<-dispatched

	publish(mqtt.SystemEvent{Timestamp: now(), Event: "SHUTDOWN", Reason: reason})
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
