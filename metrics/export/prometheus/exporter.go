package prometheus

import (
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/metrics/export/internaldefs"
)

// PrometheusExporter publishes engine metrics through a client_golang registry.
type PrometheusExporter struct {
	collector *Collector
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *goOnboard.Engine) *PrometheusExporter {
	if engine == nil {
		return NewPrometheusExporterFromSource(nil)
	}
	return NewPrometheusExporterFromSource(engine)
}

// NewPrometheusExporterFromSource creates an exporter over a custom source.
func NewPrometheusExporterFromSource(source internaldefs.Source) *PrometheusExporter {
	return &PrometheusExporter{collector: NewCollector(source)}
}

// Collector returns the client_golang collector backing the exporter.
func (p *PrometheusExporter) Collector() *Collector {
	if p == nil {
		return NewCollector(nil)
	}
	return p.collector
}

// Register adds the exporter's collector to reg.
func (p *PrometheusExporter) Register(reg promclient.Registerer) error {
	return reg.Register(p.Collector())
}

// Handler serves the exporter from a private registry holding only engine metrics.
// Hosts with their own registry use [PrometheusExporter.Register] and [Handler].
func (p *PrometheusExporter) Handler() http.Handler {
	reg := promclient.NewRegistry()
	reg.MustRegister(p.Collector())
	return Handler(reg)
}

// Handler serves everything gatherer collects in the exposition format the
// scraper negotiates.
func Handler(gatherer promclient.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
