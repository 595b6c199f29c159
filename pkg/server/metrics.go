package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks server runtime statistics, exported in Prometheus format.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ActiveConnections prometheus.Gauge
	DisconnectsTotal  prometheus.Counter

	AuthSuccess   prometheus.Counter
	AuthFailure   prometheus.Counter
	Registrations prometheus.Counter

	FramesIn       prometheus.Counter
	FramesOut      prometheus.Counter
	ProtocolErrors prometheus.Counter

	MessagesDelivered     prometheus.Counter
	MessagesUndeliverable prometheus.Counter
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_connections_total",
			Help: "Lifetime TCP connections accepted.",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "staffchat_connections_active",
			Help: "Current active connections.",
		}),
		DisconnectsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_disconnects_total",
			Help: "Total client disconnects, clean and unclean.",
		}),

		AuthSuccess: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_auth_success_total",
			Help: "Successful logins.",
		}),
		AuthFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_auth_failed_total",
			Help: "Failed logins, bad credentials and duplicate sessions.",
		}),
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_registrations_total",
			Help: "Users registered during this run.",
		}),

		FramesIn: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_frames_in_total",
			Help: "Frames decoded from clients.",
		}),
		FramesOut: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_frames_out_total",
			Help: "Frames written to clients.",
		}),
		ProtocolErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_protocol_errors_total",
			Help: "Connections closed for protocol-fatal errors.",
		}),

		MessagesDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_messages_delivered_total",
			Help: "Point-to-point messages delivered to online recipients.",
		}),
		MessagesUndeliverable: f.NewCounter(prometheus.CounterOpts{
			Name: "staffchat_messages_undeliverable_total",
			Help: "Messages dropped because the recipient was offline.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsHTTP starts a lightweight HTTP server exposing /metrics and
// /healthz. It runs in the background and shuts down when the server context
// is cancelled.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}
