// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveGames      prometheus.Gauge
	ConnectedPlayers prometheus.Gauge
	MessagesReceived prometheus.Counter
	MoveLatency      prometheus.Histogram
}

func newMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_games",
			Help:      "Number of live games in the registry",
		}),
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_players",
			Help:      "Number of open websocket connections",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound protocol messages",
		}),
		MoveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "move_latency_seconds",
			Help:      "Move pipeline processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	registry.MustRegister(
		m.ActiveGames,
		m.ConnectedPlayers,
		m.MessagesReceived,
		m.MoveLatency,
	)

	return m
}

// Monitor owns its own prometheus registry so two instances (the server and
// a test server, say) never fight over metric registration.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	registry := prometheus.NewRegistry()
	return &Monitor{
		metrics:   newMetrics(namespace, registry),
		registry:  registry,
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) SetActiveGames(count int) {
	m.metrics.ActiveGames.Set(float64(count))
}

func (m *Monitor) IncConnectedPlayers() {
	m.metrics.ConnectedPlayers.Inc()
}

func (m *Monitor) DecConnectedPlayers() {
	m.metrics.ConnectedPlayers.Dec()
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
}

func (m *Monitor) ObserveMoveLatency(duration time.Duration) {
	m.metrics.MoveLatency.Observe(duration.Seconds())
}
