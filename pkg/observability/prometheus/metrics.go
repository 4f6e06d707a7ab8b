// Package prometheus exports scheduler metrics to a Prometheus registry.
//
// The core packages stay free of instrumentation: collectors here read the
// weakly consistent Stats snapshots of the executor and the bus at scrape
// time.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/strandio/strand/pkg/bus"
	"github.com/strandio/strand/pkg/executor"
)

var (
	// DefaultRegistry is the registry used by Register.
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer labels every metric with the service name.
	DefaultRegisterer = prometheus.WrapRegistererWith(
		prometheus.Labels{"service": "strand"}, DefaultRegistry)
)

// Register attaches executor and bus collectors to the default registry.
// Either argument may be nil to skip it.
func Register(exec executor.Executor, b bus.Bus) error {
	if exec != nil {
		if err := DefaultRegisterer.Register(NewExecutorCollector(exec)); err != nil {
			return err
		}
	}
	if b != nil {
		if err := DefaultRegisterer.Register(NewBusCollector(b)); err != nil {
			return err
		}
	}
	return nil
}

// ExecutorCollector exposes executor.Stats as Prometheus metrics.
type ExecutorCollector struct {
	exec executor.Executor

	pendingDesc   *prometheus.Desc
	activeDesc    *prometheus.Desc
	completedDesc *prometheus.Desc
	failedDesc    *prometheus.Desc
	stolenDesc    *prometheus.Desc
	batchesDesc   *prometheus.Desc
	boundsDesc    *prometheus.Desc
}

// NewExecutorCollector creates a collector over exec.
func NewExecutorCollector(exec executor.Executor) *ExecutorCollector {
	return &ExecutorCollector{
		exec: exec,
		pendingDesc: prometheus.NewDesc(
			"strand_executor_pending_tasks",
			"Tasks enqueued but not yet dispatched into user code",
			nil, nil),
		activeDesc: prometheus.NewDesc(
			"strand_executor_active_workers",
			"Workers alive and eligible to dequeue",
			nil, nil),
		completedDesc: prometheus.NewDesc(
			"strand_executor_completed_tasks_total",
			"Tasks that finished without error",
			nil, nil),
		failedDesc: prometheus.NewDesc(
			"strand_executor_failed_tasks_total",
			"Tasks that returned an error or panicked",
			nil, nil),
		stolenDesc: prometheus.NewDesc(
			"strand_executor_stolen_tasks_total",
			"Dequeues taken from a peer worker's local queue",
			nil, nil),
		batchesDesc: prometheus.NewDesc(
			"strand_executor_batches_acquired_total",
			"Batch acquisitions performed by the batch variant",
			nil, nil),
		boundsDesc: prometheus.NewDesc(
			"strand_executor_worker_bound",
			"Configured worker bounds",
			[]string{"bound"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *ExecutorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pendingDesc
	ch <- c.activeDesc
	ch <- c.completedDesc
	ch <- c.failedDesc
	ch <- c.stolenDesc
	ch <- c.batchesDesc
	ch <- c.boundsDesc
}

// Collect implements prometheus.Collector.
func (c *ExecutorCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.exec.Stats()
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(s.PendingTasks))
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(s.ActiveWorkers))
	ch <- prometheus.MustNewConstMetric(c.completedDesc, prometheus.CounterValue, float64(s.CompletedTasks))
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.CounterValue, float64(s.FailedTasks))
	ch <- prometheus.MustNewConstMetric(c.stolenDesc, prometheus.CounterValue, float64(s.StolenTasks))
	ch <- prometheus.MustNewConstMetric(c.batchesDesc, prometheus.CounterValue, float64(s.BatchesAcquired))
	ch <- prometheus.MustNewConstMetric(c.boundsDesc, prometheus.GaugeValue, float64(s.MinWorkers), "min")
	ch <- prometheus.MustNewConstMetric(c.boundsDesc, prometheus.GaugeValue, float64(s.MaxWorkers), "max")
}

// BusCollector exposes bus.Stats as Prometheus metrics.
type BusCollector struct {
	bus bus.Bus

	emittedDesc    *prometheus.Desc
	resumedDesc    *prometheus.Desc
	registeredDesc *prometheus.Desc
	payloadsDesc   *prometheus.Desc
}

// NewBusCollector creates a collector over b.
func NewBusCollector(b bus.Bus) *BusCollector {
	return &BusCollector{
		bus: b,
		emittedDesc: prometheus.NewDesc(
			"strand_bus_events_emitted_total",
			"Emit calls accepted by the bus",
			nil, nil),
		resumedDesc: prometheus.NewDesc(
			"strand_bus_handlers_resumed_total",
			"Handler resumptions dispatched through the executor",
			nil, nil),
		registeredDesc: prometheus.NewDesc(
			"strand_bus_registered_handlers",
			"Continuations currently suspended on an event name",
			nil, nil),
		payloadsDesc: prometheus.NewDesc(
			"strand_bus_live_payloads",
			"Event names with a payload awaiting its last resumption",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *BusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.emittedDesc
	ch <- c.resumedDesc
	ch <- c.registeredDesc
	ch <- c.payloadsDesc
}

// Collect implements prometheus.Collector.
func (c *BusCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.bus.Stats()
	ch <- prometheus.MustNewConstMetric(c.emittedDesc, prometheus.CounterValue, float64(s.EventsEmitted))
	ch <- prometheus.MustNewConstMetric(c.resumedDesc, prometheus.CounterValue, float64(s.HandlersResumed))
	ch <- prometheus.MustNewConstMetric(c.registeredDesc, prometheus.GaugeValue, float64(s.RegisteredHandlers))
	ch <- prometheus.MustNewConstMetric(c.payloadsDesc, prometheus.GaugeValue, float64(s.LivePayloads))
}
