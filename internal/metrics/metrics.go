// Package metrics exposes Prometheus collectors for HTTP traffic and the push channel.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crowdwatch/internal/realtime"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RealtimeClients  prometheus.Gauge
	RealtimeEvents   *prometheus.CounterVec
	RealtimeFailures prometheus.Counter
}

// New registers the collectors on their own registry, together with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crowdwatch",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "crowdwatch",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RealtimeClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "crowdwatch",
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Connected websocket clients",
		}),
		RealtimeEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "crowdwatch",
				Subsystem: "realtime",
				Name:      "events_total",
				Help:      "Events published to the push channel",
			},
			[]string{"event"},
		),
		RealtimeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "crowdwatch",
			Subsystem: "realtime",
			Name:      "publish_failures_total",
			Help:      "Events that could not be published",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per chi route pattern, so ids do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// SetClients matches realtime.Hub.OnChange.
func (m *Metrics) SetClients(n int) {
	m.RealtimeClients.Set(float64(n))
}

// CountEvents wraps p so every published event is counted by type.
func (m *Metrics) CountEvents(p realtime.Publisher) realtime.Publisher {
	return &countingPublisher{next: p, m: m}
}

type countingPublisher struct {
	next realtime.Publisher
	m    *Metrics
}

func (c *countingPublisher) Publish(ctx context.Context, e realtime.Event) error {
	err := c.next.Publish(ctx, e)
	if err != nil {
		c.m.RealtimeFailures.Inc()
		return err
	}
	c.m.RealtimeEvents.WithLabelValues(e.Type).Inc()
	return nil
}
