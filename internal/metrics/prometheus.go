package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements Collector on top of client_golang,
// reshaped from the teacher's POP3-command-centric metrics to the spec's
// three write-only hooks (connect/disconnect/bytes).
type PrometheusCollector struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	bytesTotal        *prometheus.CounterVec

	ring *Ring
}

// NewPrometheusCollector creates a PrometheusCollector with all metrics
// registered against reg, backed by a bounded per-user event ring of
// capacity ringCapacity (the deferred "non-core read surface" from
// spec.md §9).
func NewPrometheusCollector(reg prometheus.Registerer, ringCapacity int) *PrometheusCollector {
	c := &PrometheusCollector{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "popd_connections_total",
			Help: "Total number of connections opened, across POP3 and manager listeners.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "popd_connections_active",
			Help: "Number of currently open connections.",
		}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popd_bytes_total",
			Help: "Total bytes transferred, by direction.",
		}, []string{"direction"}),
		ring: NewRing(ringCapacity),
	}

	reg.MustRegister(
		c.connectionsTotal,
		c.connectionsActive,
		c.bytesTotal,
	)

	return c
}

// Connect implements Collector.
func (c *PrometheusCollector) Connect(ip, user string) {
	c.connectionsTotal.Inc()
	c.connectionsActive.Inc()
	c.ring.Push(Event{Kind: EventConnect, IP: ip, User: user})
}

// Disconnect implements Collector.
func (c *PrometheusCollector) Disconnect(ip, user string) {
	c.connectionsActive.Dec()
	c.ring.Push(Event{Kind: EventDisconnect, IP: ip, User: user})
}

// Bytes implements Collector.
func (c *PrometheusCollector) Bytes(ip, user string, dir Direction, count int64) {
	c.bytesTotal.WithLabelValues(dir.String()).Add(float64(count))
	c.ring.Push(Event{Kind: EventBytes, IP: ip, User: user, Bytes: count, Dir: dir})
}

// Ring exposes the non-core read surface over recent events; it is never
// called from internal/reactor or internal/pop3.
func (c *PrometheusCollector) Ring() *Ring {
	return c.ring
}

func (d Direction) String() string {
	if d == Outbound {
		return "outbound"
	}
	return "inbound"
}
