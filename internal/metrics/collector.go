// Package metrics exports scheduler activity as Prometheus metrics.
package metrics

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/aryankumar/testfleet/internal/executor"
)

const namespace = "testfleet"

// DurationBuckets suit test binaries that run from seconds to tens of minutes.
var DurationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 900, 1800}

// Collector records scheduler events. It implements executor.Observer.
type Collector struct {
	started  prom.Counter
	finished *prom.CounterVec
	duration prom.Histogram
	timeouts prom.Counter
	workers  prom.Gauge
	inFlight prom.Gauge
}

var _ executor.Observer = (*Collector)(nil)

// NewCollector creates the collectors and registers them on reg. Collectors
// already registered under the same name are reused.
func NewCollector(reg prom.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	c := &Collector{
		started: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Total number of tasks picked up by a worker.",
		}),
		finished: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Total number of task outcomes, by terminal cause.",
		}, []string{"cause"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task run time in seconds.",
			Buckets:   DurationBuckets,
		}),
		timeouts: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "task_timeouts_total",
			Help:      "Total number of tasks killed by the timeout supervisor.",
		}),
		workers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers",
			Help:      "Current number of worker units.",
		}),
		inFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Tasks started whose outcome has not been observed.",
		}),
	}

	var err error
	if c.started, err = register(reg, c.started); err != nil {
		return nil, err
	}
	if c.finished, err = register(reg, c.finished); err != nil {
		return nil, err
	}
	if c.duration, err = register(reg, c.duration); err != nil {
		return nil, err
	}
	if c.timeouts, err = register(reg, c.timeouts); err != nil {
		return nil, err
	}
	if c.workers, err = register(reg, c.workers); err != nil {
		return nil, err
	}
	if c.inFlight, err = register(reg, c.inFlight); err != nil {
		return nil, err
	}
	return c, nil
}

// TaskStarted counts a task picked up by a worker.
func (c *Collector) TaskStarted(string) {
	c.started.Inc()
	c.inFlight.Inc()
}

// TaskFinished records an observed outcome.
func (c *Collector) TaskFinished(o executor.Outcome) {
	c.finished.WithLabelValues(o.Cause().String()).Inc()
	c.duration.Observe(o.Duration().Seconds())
	c.inFlight.Dec()
}

// TaskTimedOut counts a timeout kill.
func (c *Collector) TaskTimedOut(string) {
	c.timeouts.Inc()
}

// PoolResized sets the worker gauge.
func (c *Collector) PoolResized(workers int) {
	c.workers.Set(float64(workers))
}

func register[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prom.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}
	return collector, err
}
