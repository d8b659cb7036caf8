package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/wolimst/secs-core/pkg/hsms"
)

type fakeStats struct {
	state      hsms.State
	generation uint64
	pending    int
	ltFail     uint64
	reconn     uint64
}

func (f fakeStats) State() hsms.State          { return f.state }
func (f fakeStats) SelectedGeneration() uint64 { return f.generation }
func (f fakeStats) PendingCount() int          { return f.pending }
func (f fakeStats) LinktestFailures() uint64   { return f.ltFail }
func (f fakeStats) Reconnects() uint64         { return f.reconn }

func TestSessionCollector_CollectReflectsRegisteredSession(t *testing.T) {
	c := NewSessionCollector("secs_hsms", []string{"equipment"}, nil)
	c.Add("eq1", fakeStats{state: hsms.StateSelected, generation: 3, pending: 2, ltFail: 1, reconn: 4}, []string{"eq1"})

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, fam := range families {
		for _, m := range fam.Metric {
			values[fam.GetName()] = metricValue(m)
		}
	}

	require.Equal(t, 1.0, values["secs_hsms_selected"])
	require.Equal(t, 3.0, values["secs_hsms_selected_generation"])
	require.Equal(t, 2.0, values["secs_hsms_pending_requests"])
	require.Equal(t, 1.0, values["secs_hsms_linktest_failures_total"])
	require.Equal(t, 4.0, values["secs_hsms_reconnects_total"])
}

func TestSessionCollector_RemoveStopsExport(t *testing.T) {
	c := NewSessionCollector("secs_hsms", []string{"equipment"}, nil)
	c.Add("eq1", fakeStats{}, []string{"eq1"})
	c.Remove("eq1")

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families)
}

func metricValue(m *dto.Metric) float64 {
	if m.Gauge != nil {
		return m.Gauge.GetValue()
	}
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return 0
}
