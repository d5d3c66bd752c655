// Package prometheus exposes manager metrics as a
// [prometheus.Collector] so hosts can register them alongside their own.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authkit "github.com/loopchat/authkit"
	"github.com/loopchat/authkit/metrics/export/internaldefs"
)

// Source is anything that can produce a metrics snapshot. *authkit.Manager
// satisfies it.
type Source interface {
	MetricsSnapshot() authkit.MetricsSnapshot
}

// Exporter adapts snapshots to the Prometheus collection model. Collection
// is cheap; each scrape takes one snapshot.
type Exporter struct {
	source       Source
	counterDescs map[authkit.MetricID]*prometheus.Desc
	histDescs    map[authkit.MetricID]*prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter builds an exporter reading from source.
func NewExporter(source Source) *Exporter {
	e := &Exporter{
		source:       source,
		counterDescs: make(map[authkit.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histDescs:    make(map[authkit.MetricID]*prometheus.Desc, len(internaldefs.HistogramDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counterDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histDescs[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	return e
}

// Describe implements [prometheus.Collector].
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range e.counterDescs {
		ch <- desc
	}
	for _, desc := range e.histDescs {
		ch <- desc
	}
}

// Collect implements [prometheus.Collector].
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			e.counterDescs[def.ID],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.ID]),
		)
	}

	for _, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(raw)

		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		count := cumulative[len(cumulative)-1]

		// The core snapshot keeps bucket counts only; the sum is not tracked.
		ch <- prometheus.MustNewConstHistogram(
			e.histDescs[def.ID],
			count,
			0,
			buckets,
		)
	}
}

// Handler returns an http.Handler serving only this exporter's metrics.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
