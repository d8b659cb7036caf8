// Package metrics exposes the protocol stack's session health as
// Prometheus metrics, following the registered-entry collector pattern
// used for connection-level stats elsewhere in the example corpus.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolimst/secs-core/pkg/hsms"
)

// SessionStats is the subset of an *hsms.Session's state a
// SessionCollector reads on each Collect call. hsms.Session satisfies
// this directly; it is an interface so tests can supply a fake.
type SessionStats interface {
	State() hsms.State
	SelectedGeneration() uint64
	PendingCount() int
	LinktestFailures() uint64
	Reconnects() uint64
}

type info struct {
	description *prometheus.Desc
	supplier    func(s SessionStats, labelValues []string) prometheus.Metric
}

type sessionEntry struct {
	stats  SessionStats
	labels []string
}

// SessionCollector exports gauges and counters for a set of named HSMS
// sessions (equipment connections). Register it once with a
// prometheus.Registry and Add each session under a stable label (e.g.
// the equipment ID) as it's created.
type SessionCollector struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	infos    []info
}

// NewSessionCollector builds a SessionCollector whose metric names carry
// prefix (e.g. "secs_hsms") and whose metrics are tagged with
// variableLabels in addition to constLabels.
func NewSessionCollector(prefix string, variableLabels []string, constLabels prometheus.Labels) *SessionCollector {
	return &SessionCollector{
		sessions: make(map[string]sessionEntry),
		infos:    sessionInfos(prefix, variableLabels, constLabels),
	}
}

func sessionInfos(prefix string, variableLabels []string, constLabels prometheus.Labels) []info {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(fmt.Sprintf("%s_%s", prefix, name), help, variableLabels, constLabels)
	}

	selected := desc("selected", "1 if the session is in the selected state, 0 otherwise.")
	generation := desc("selected_generation", "Monotonic count of successful SELECT transactions.")
	pending := desc("pending_requests", "Number of in-flight data requests awaiting a reply.")
	linktestFailures := desc("linktest_failures_total", "Cumulative count of failed LINKTEST transactions.")
	reconnects := desc("reconnects_total", "Cumulative count of auto-reconnect attempts.")

	return []info{
		{
			description: selected,
			supplier: func(s SessionStats, labels []string) prometheus.Metric {
				v := 0.0
				if s.State() == hsms.StateSelected {
					v = 1.0
				}
				return prometheus.MustNewConstMetric(selected, prometheus.GaugeValue, v, labels...)
			},
		},
		{
			description: generation,
			supplier: func(s SessionStats, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(generation, prometheus.CounterValue, float64(s.SelectedGeneration()), labels...)
			},
		},
		{
			description: pending,
			supplier: func(s SessionStats, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(pending, prometheus.GaugeValue, float64(s.PendingCount()), labels...)
			},
		},
		{
			description: linktestFailures,
			supplier: func(s SessionStats, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(linktestFailures, prometheus.CounterValue, float64(s.LinktestFailures()), labels...)
			},
		},
		{
			description: reconnects,
			supplier: func(s SessionStats, labels []string) prometheus.Metric {
				return prometheus.MustNewConstMetric(reconnects, prometheus.CounterValue, float64(s.Reconnects()), labels...)
			},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(descs chan<- *prometheus.Desc) {
	for _, i := range c.infos {
		descs <- i.description
	}
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.sessions {
		for _, i := range c.infos {
			metrics <- i.supplier(entry.stats, entry.labels)
		}
	}
}

// Add registers a session under name, tagged with labels (matching the
// variableLabels order passed to NewSessionCollector).
func (c *SessionCollector) Add(name string, stats SessionStats, labels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[name] = sessionEntry{stats: stats, labels: labels}
}

// Remove unregisters name, e.g. when its session is permanently torn down.
func (c *SessionCollector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, name)
}
