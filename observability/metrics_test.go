package observability

import (
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Nil_Is_Noop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.RoomStarted("chat")
		m.RoomStartFailed("chat")
		m.Write("todos", nil)
		m.Evicted()
		m.Rejected("malformed")
		m.Observe(RoomStats{Rooms: map[string]int{"chat": 1}, Subscribers: 2})
	})
}

func TestMetrics_Counts_Writes_By_Outcome(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(prometheus.NewRegistry())

	m.Write("todos", nil)
	m.Write("todos", nil)
	m.Write("todos", stderrors.New("disk full"))

	req.Equal(2.0, testutil.ToFloat64(m.writes.WithLabelValues("todos", "ok")))
	req.Equal(1.0, testutil.ToFloat64(m.writes.WithLabelValues("todos", "error")))
}

func TestMetrics_Observe_Replaces_Room_Gauges(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(prometheus.NewRegistry())

	m.Observe(RoomStats{Rooms: map[string]int{"chat": 3, "tandem": 1}, Subscribers: 5})
	m.Observe(RoomStats{Rooms: map[string]int{"chat": 2}, Subscribers: 4})

	req.Equal(2.0, testutil.ToFloat64(m.activeRooms.WithLabelValues("chat")))
	req.Equal(4.0, testutil.ToFloat64(m.subscribers))
	req.Equal(1, testutil.CollectAndCount(m.activeRooms))
}
