package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/agrosmart/internal/domain/alert"
)

const namespace = "agrosmart"

// Collector holds the controller metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	sessions    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	moisture    prometheus.Gauge
	latched     prometheus.Gauge
}

// New creates and registers the controller metrics plus the Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Status page connections by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_transitions_total",
			Help:      "Alert state changes by target state.",
		}, []string{"to"}),
		moisture: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "soil_moisture_percent",
			Help:      "Last soil moisture reading.",
		}),
		latched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_latched",
			Help:      "1 while the low-moisture alert is latched.",
		}),
	}

	c.registry.MustRegister(
		c.sessions,
		c.transitions,
		c.moisture,
		c.latched,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry:      c.registry,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// MoistureRead records the last reading.
func (c *Collector) MoistureRead(moisture alert.Moisture) {
	c.moisture.Set(float64(moisture))
}

// SessionFinished counts a status page connection.
func (c *Collector) SessionFinished(outcome string) {
	c.sessions.WithLabelValues(outcome).Inc()
}

// AlertChanged counts the transition and updates the latch gauge.
func (c *Collector) AlertChanged(_ context.Context, t alert.Transition) {
	c.transitions.WithLabelValues(t.To.String()).Inc()

	if t.To == alert.Latched {
		c.latched.Set(1)
	} else {
		c.latched.Set(0)
	}
}
