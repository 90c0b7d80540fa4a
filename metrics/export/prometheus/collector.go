package prometheus

import (
	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/MrEthical07/goOnboard/metrics/export/internaldefs"
)

// Collector adapts a metrics source to a client_golang [promclient.Collector].
//
// Values are read from the engine on every scrape; the collector holds no state
// of its own besides descriptors.
type Collector struct {
	source     internaldefs.Source
	counters   []*promclient.Desc
	histograms []*promclient.Desc
	audit      []*promclient.Desc
	gauges     []*promclient.Desc
}

// NewCollector builds a collector over source. A nil source collects nothing.
func NewCollector(source internaldefs.Source) *Collector {
	c := &Collector{
		source:     source,
		counters:   make([]*promclient.Desc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]*promclient.Desc, 0, len(internaldefs.HistogramDefs)),
		audit:      make([]*promclient.Desc, 0, len(internaldefs.AuditDefs)),
		gauges:     make([]*promclient.Desc, 0, len(internaldefs.GaugeDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, promclient.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, promclient.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.AuditDefs {
		c.audit = append(c.audit, promclient.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.GaugeDefs {
		c.gauges = append(c.gauges, promclient.NewDesc(def.Name, def.Help, nil, nil))
	}
	return c
}

// Describe implements [promclient.Collector].
func (c *Collector) Describe(ch chan<- *promclient.Desc) {
	for _, group := range [][]*promclient.Desc{c.counters, c.histograms, c.audit, c.gauges} {
		for _, d := range group {
			ch <- d
		}
	}
}

// Collect implements [promclient.Collector].
func (c *Collector) Collect(ch chan<- promclient.Metric) {
	if c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- promclient.MustNewConstMetric(c.counters[i], promclient.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for i, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for j, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[j]
		}
		// Snapshots carry bucket counts only, so the sum is reported as zero.
		ch <- promclient.MustNewConstHistogram(c.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	stats := c.source.AuditStats()
	for i, def := range internaldefs.AuditDefs {
		ch <- promclient.MustNewConstMetric(c.audit[i], promclient.CounterValue, float64(def.Value(stats)))
	}

	gauges := c.source.Gauges()
	for i, def := range internaldefs.GaugeDefs {
		ch <- promclient.MustNewConstMetric(c.gauges[i], promclient.GaugeValue, float64(def.Value(gauges)))
	}
}
