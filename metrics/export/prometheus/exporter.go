// Package prometheus exposes authcore engine counters as Prometheus
// metrics.
//
// The exporter is a prometheus.Collector over the engine's counter
// snapshot. Nothing registers globally: callers either register the
// collector in their own registry or mount [Exporter.Handler], which serves
// from a private registry.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseworks/authcore"
)

const namespace = "authcore"

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter implements prometheus.Collector over an engine.
type Exporter struct {
	source       metricsSource
	counterDescs map[authcore.MetricID]*prometheus.Desc
	droppedDesc  *prometheus.Desc
}

// NewExporter reads from the given engine.
func NewExporter(engine *authcore.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource reads from any metrics source, for tests and
// wrappers.
func NewExporterFromSource(source metricsSource) *Exporter {
	descs := make(map[authcore.MetricID]*prometheus.Desc)
	for _, id := range authcore.MetricIDs() {
		descs[id] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", id.String()+"_total"),
			"Total number of "+id.String()+" events.",
			nil, nil,
		)
	}
	return &Exporter{
		source:       source,
		counterDescs: descs,
		droppedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "audit", "dropped_total"),
			"Audit events dropped due to a full dispatch queue.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range e.counterDescs {
		ch <- desc
	}
	ch <- e.droppedDesc
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()
	for id, desc := range e.counterDescs {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(snapshot.Counters[id]))
	}
	ch <- prometheus.MustNewConstMetric(e.droppedDesc, prometheus.CounterValue, float64(e.source.AuditDropped()))
}

// Handler serves the exporter from a private registry in the standard text
// exposition format.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
