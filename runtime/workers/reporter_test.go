package workers

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"

	"tandem/domain"
	"tandem/observability"
)

type staticCounter struct {
	party       domain.Party
	rooms       int
	subscribers int
}

func (c staticCounter) Party() domain.Party { return c.party }

func (c staticCounter) Stats() (int, int) { return c.rooms, c.subscribers }

func TestReporter_Collect_Aggregates_Directories(t *testing.T) {
	req := require.New(t)
	reporter := NewReporterWorker(time.Minute, nil, slog.Default(),
		staticCounter{party: domain.PartyChat, rooms: 2, subscribers: 5},
		staticCounter{party: domain.PartyTandem, rooms: 1},
	)

	stats := reporter.Collect()

	req.Equal(map[string]int{"chat": 2, "tandem": 1}, stats.Rooms)
	req.Equal(5, stats.Subscribers)
}

func TestReporter_Stops_With_Context(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	reporter := NewReporterWorker(5*time.Millisecond, metrics, slog.Default(),
		staticCounter{party: domain.PartyChat, rooms: 1, subscribers: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	req.NoError(reporter.Run(ctx))
}

func TestReporter_Reads_Own_Process_Stats(t *testing.T) {
	req := require.New(t)
	self, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	rss, _, err := selfStats(self)

	req.NoError(err)
	req.Positive(rss)
}

func TestReporter_Without_Process_Handle(t *testing.T) {
	req := require.New(t)

	_, _, err := selfStats(nil)

	req.Error(err)
}
