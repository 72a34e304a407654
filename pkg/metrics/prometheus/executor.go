package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/keystone/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// executorCollectors are shared by every executor on a registry, told apart
// by the "executor" label.
type executorCollectors struct {
	spawned   *prometheus.CounterVec
	completed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inflight  *prometheus.GaugeVec
	workers   *prometheus.GaugeVec
}

var (
	execMu  sync.Mutex
	execReg *prometheus.Registry
	execC   *executorCollectors
)

func sharedExecutorCollectors(reg *prometheus.Registry) *executorCollectors {
	execMu.Lock()
	defer execMu.Unlock()
	if execC != nil && execReg == reg {
		return execC
	}

	f := promauto.With(reg)
	execC = &executorCollectors{
		spawned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_executor_tasks_spawned_total",
			Help: "Total number of tasks submitted to the executor",
		}, []string{"executor"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_executor_tasks_completed_total",
			Help: "Total number of finished tasks by outcome",
		}, []string{"executor", "failed", "panicked"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keystone_executor_task_duration_seconds",
			Help:    "Task wall-clock duration, including time spent parked",
			Buckets: prometheus.ExponentialBuckets(0.001, 10, 7), // 1ms .. 1000s
		}, []string{"executor"}),
		inflight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keystone_executor_inflight_tasks",
			Help: "Tasks submitted and not yet finished",
		}, []string{"executor"}),
		workers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keystone_executor_workers",
			Help: "Configured number of worker slots",
		}, []string{"executor"}),
	}
	execReg = reg
	return execC
}

// executorMetrics is the Prometheus implementation of metrics.ExecutorMetrics.
type executorMetrics struct {
	spawned   prometheus.Counter
	completed *prometheus.CounterVec
	duration  prometheus.Observer
	inflight  prometheus.Gauge
	workers   prometheus.Gauge
}

// NewExecutorMetrics returns ExecutorMetrics for the executor called name
// with the given number of workers, or nil if metrics are not enabled.
func NewExecutorMetrics(name string, workers int) metrics.ExecutorMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	c := sharedExecutorCollectors(metrics.GetRegistry())

	m := &executorMetrics{
		spawned:   c.spawned.WithLabelValues(name),
		completed: c.completed.MustCurryWith(prometheus.Labels{"executor": name}),
		duration:  c.duration.WithLabelValues(name),
		inflight:  c.inflight.WithLabelValues(name),
		workers:   c.workers.WithLabelValues(name),
	}
	m.workers.Set(float64(workers))
	return m
}

func (m *executorMetrics) RecordTaskSpawned() {
	m.spawned.Inc()
}

func (m *executorMetrics) RecordTaskCompleted(duration time.Duration, failed, panicked bool) {
	m.completed.WithLabelValues(strconv.FormatBool(failed), strconv.FormatBool(panicked)).Inc()
	m.duration.Observe(duration.Seconds())
}

func (m *executorMetrics) SetInflightTasks(n int64) {
	m.inflight.Set(float64(n))
}
