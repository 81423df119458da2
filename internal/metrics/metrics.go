// Package metrics holds the per-run counters. A run is a batch job, so the
// registry is flushed to a node-exporter textfile instead of being served.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

type Registry struct {
	reg *prometheus.Registry

	RowsRead         prometheus.Counter
	RowsDropped      prometheus.Counter
	OrdersGrouped    prometheus.Counter
	OrdersClassified prometheus.Counter
	OrdersSkipped    prometheus.Counter
	OrdersIncomplete *prometheus.CounterVec
	Nodes            prometheus.Gauge
	Edges            prometheus.Gauge
	Diagnostics      *prometheus.CounterVec
	RunDurationSec   prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rowsRead := prometheus.NewCounter(prometheus.CounterOpts{Name: "flowaudit_rows_read_total"})
	rowsDropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "flowaudit_rows_dropped_total"})
	grouped := prometheus.NewCounter(prometheus.CounterOpts{Name: "flowaudit_orders_grouped_total"})
	classified := prometheus.NewCounter(prometheus.CounterOpts{Name: "flowaudit_orders_classified_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "flowaudit_orders_skipped_total"})
	incomplete := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowaudit_orders_incomplete_total",
		Help: "Classified orders missing their primary bra or panty.",
	}, []string{"status"})
	nodes := prometheus.NewGauge(prometheus.GaugeOpts{Name: "flowaudit_graph_nodes"})
	edges := prometheus.NewGauge(prometheus.GaugeOpts{Name: "flowaudit_graph_edges"})
	diags := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "flowaudit_diagnostics_total"}, []string{"code", "severity"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{Name: "flowaudit_run_duration_seconds"})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{Name: "flowaudit_last_run_timestamp_seconds"})

	r.MustRegister(rowsRead, rowsDropped, grouped, classified, skipped, incomplete, nodes, edges, diags, duration, lastRun)
	return &Registry{
		reg:              r,
		RowsRead:         rowsRead,
		RowsDropped:      rowsDropped,
		OrdersGrouped:    grouped,
		OrdersClassified: classified,
		OrdersSkipped:    skipped,
		OrdersIncomplete: incomplete,
		Nodes:            nodes,
		Edges:            edges,
		Diagnostics:      diags,
		RunDurationSec:   duration,
		LastRunTimestamp: lastRun,
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
