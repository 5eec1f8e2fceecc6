package observability

import (
	"github.com/aretw0/roster/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// StatsSource is anything that can report registry counters.
type StatsSource interface {
	Stats() domain.Stats
}

// Collector implements prometheus.Collector over a StatsSource.
type Collector struct {
	source StatsSource

	sessions       *prometheus.Desc
	threadsRunning *prometheus.Desc
	threadsCreated *prometheus.Desc
	reservedIDs    *prometheus.Desc
}

// Ensure compliance with prometheus.Collector.
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector reporting under the "roster" namespace.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName("roster", "", "sessions"),
			"Number of sessions currently registered.",
			nil, nil,
		),
		threadsRunning: prometheus.NewDesc(
			prometheus.BuildFQName("roster", "threads", "running"),
			"Number of workers currently executing session work.",
			nil, nil,
		),
		threadsCreated: prometheus.NewDesc(
			prometheus.BuildFQName("roster", "threads", "created_total"),
			"Total number of workers created.",
			nil, nil,
		),
		reservedIDs: prometheus.NewDesc(
			prometheus.BuildFQName("roster", "session_ids", "reserved"),
			"Number of session IDs currently reserved.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.threadsRunning
	ch <- c.threadsCreated
	ch <- c.reservedIDs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(stats.Sessions))
	ch <- prometheus.MustNewConstMetric(c.threadsRunning, prometheus.GaugeValue, float64(stats.ThreadsRunning))
	ch <- prometheus.MustNewConstMetric(c.threadsCreated, prometheus.CounterValue, float64(stats.ThreadsCreated))
	ch <- prometheus.MustNewConstMetric(c.reservedIDs, prometheus.GaugeValue, float64(stats.ReservedIDs))
}
