package stats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const promMetricName = "nucasim_stat"

// Collector exposes a Source as Prometheus counters, labelled by object,
// instance and metric.
type Collector struct {
	source Source
	desc   *prometheus.Desc
}

// NewCollector creates a collector that snapshots source on every scrape.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		desc: prometheus.NewDesc(
			promMetricName,
			"NUCA cache simulation statistics",
			[]string{"object", "instance", "metric"},
			nil,
		),
	}
}

// Describe sends the descriptor of the collected metrics.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect takes a snapshot and sends one counter per entry.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, e := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(
			c.desc,
			prometheus.CounterValue,
			float64(e.Value),
			e.Object,
			strconv.Itoa(e.Instance),
			e.Metric,
		)
	}
}
