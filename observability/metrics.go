// Package observability exposes the server's prometheus metrics.
// Every method is safe on a nil *Metrics so tests can skip the registry.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tandem"

// RoomStats is the aggregated view the reporter logs and exports.
type RoomStats struct {
	Rooms       map[string]int `json:"rooms"`
	Subscribers int            `json:"subscribers"`
}

type Metrics struct {
	roomsStarted   *prometheus.CounterVec
	startFailures  *prometheus.CounterVec
	activeRooms    *prometheus.GaugeVec
	subscribers    prometheus.Gauge
	writes         *prometheus.CounterVec
	evictions      prometheus.Counter
	rejectedEvents *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		roomsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_started_total",
			Help:      "Rooms successfully started, by party.",
		}, []string{"party"}),
		startFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_start_failures_total",
			Help:      "Room starts that failed and were not cached, by party.",
		}, []string{"party"}),
		activeRooms: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms currently held in memory, by party.",
		}, []string{"party"}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Live chat connections across every room.",
		}),
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Durable writes, by collection and outcome.",
		}, []string{"collection", "outcome"}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_subscriber_evictions_total",
			Help:      "Subscribers closed because their buffer was full.",
		}),
		rejectedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_events_total",
			Help:      "Inbound chat frames dropped, by reason.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) RoomStarted(party string) {
	if m == nil {
		return
	}
	m.roomsStarted.WithLabelValues(party).Inc()
}

func (m *Metrics) RoomStartFailed(party string) {
	if m == nil {
		return
	}
	m.startFailures.WithLabelValues(party).Inc()
}

func (m *Metrics) Write(collection string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.writes.WithLabelValues(collection, outcome).Inc()
}

func (m *Metrics) Evicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedEvents.WithLabelValues(reason).Inc()
}

// Observe publishes a stats snapshot taken by the reporter.
func (m *Metrics) Observe(stats RoomStats) {
	if m == nil {
		return
	}
	m.activeRooms.Reset()
	for party, count := range stats.Rooms {
		m.activeRooms.WithLabelValues(party).Set(float64(count))
	}
	m.subscribers.Set(float64(stats.Subscribers))
}
