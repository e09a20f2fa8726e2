// Package metrics registers the pipeline's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlansScanned counts due plans returned by scan queries
	PlansScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satstack_plans_scanned_total",
		Help: "Number of due savings plans returned by scanner queries",
	})

	// TasksDispatched counts execution tasks handed to the dispatch queue
	TasksDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satstack_tasks_dispatched_total",
		Help: "Number of execution tasks enqueued for execution",
	})

	// DispatchSkips counts plans skipped because their status changed
	// between the scan query and the conditional update
	DispatchSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satstack_dispatch_skips_total",
		Help: "Number of due plans skipped after losing the status race",
	})

	// ScanFailures counts scanner runs that reported at least one hard failure
	ScanFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satstack_scan_failures_total",
		Help: "Number of scanner runs with at least one failed dispatch",
	})

	// Executions counts processed tasks by result
	// (completed, failed, retries_exhausted)
	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satstack_executions_total",
		Help: "Number of processed execution tasks by result",
	}, []string{"result"})
)
