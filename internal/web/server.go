// Package web provides the collector's HTTP surface: the device ingestion
// API, the status page, and the JSON and metrics views.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/carpi-telemetry/internal/collector"
	"github.com/sweeney/carpi-telemetry/internal/notify"
	"github.com/sweeney/carpi-telemetry/internal/report"
	"github.com/sweeney/carpi-telemetry/internal/status"
)

// Alerter accepts door alerts for asynchronous delivery.
type Alerter interface {
	Enqueue(a notify.Alert) bool
}

// ConnectionStatus reports whether a broker connection is up.
type ConnectionStatus interface {
	IsConnected() bool
}

// Options configure a Server. Alerts, MQTT and Metrics may be nil.
type Options struct {
	Config  status.Config
	Alerts  Alerter
	MQTT    ConnectionStatus
	Metrics http.Handler
}

// Server serves the collector over HTTP.
type Server struct {
	httpServer *http.Server
	agg        *collector.Aggregator
	alerts     Alerter
	mqtt       ConnectionStatus
	cfg        status.Config
}

// New creates a Server backed by agg.
func New(addr string, agg *collector.Aggregator, opts Options) *Server {
	s := &Server{
		agg:    agg,
		alerts: opts.Alerts,
		mqtt:   opts.MQTT,
		cfg:    opts.Config,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/history.json", s.handleHistory)
	mux.HandleFunc(report.PathHeartbeat, s.handleIngest(report.KindHeartbeat, "Heartbeat received"))
	mux.HandleFunc(report.PathSensorActivate, s.handleIngest(report.KindSensorAlert, "OK"))
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.agg.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap, s.config(), showPos(r))
}

// config returns the display config with the live broker state.
func (s *Server) config() status.Config {
	cfg := s.cfg
	if s.mqtt != nil {
		cfg.MQTTConnected = s.mqtt.IsConnected()
	}
	return cfg
}

func showPos(r *http.Request) bool {
	return r.URL.Query().Get("showPos") == "true"
}
