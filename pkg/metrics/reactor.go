package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initReactorMetrics initializes worker reactor queue metrics.
func (m *Manager) initReactorMetrics(cfg Config) {
	m.reactorQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reactor_queue_depth",
			Help: "Current depth of reactor task queue",
		},
		[]string{"reactor"},
	)

	m.reactorWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reactor_wait_duration_seconds",
			Help:    "Time tasks spend waiting in reactor queue",
			Buckets: cfg.ReactorWaitBuckets,
		},
		[]string{"reactor"},
	)

	m.reactorTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactor_tasks_total",
			Help: "Total number of tasks processed by reactor",
		},
		[]string{"reactor", "kind", "outcome"},
	)

	m.registry.MustRegister(m.reactorQueueDepth)
	m.registry.MustRegister(m.reactorWaitDuration)
	m.registry.MustRegister(m.reactorTasks)
}

// IncQueueDepth increments the queue depth for a reactor.
func (m *Manager) IncQueueDepth(reactor string) {
	if !m.enabled {
		return
	}
	m.reactorQueueDepth.WithLabelValues(reactor).Inc()
}

// DecQueueDepth decrements the queue depth for a reactor.
func (m *Manager) DecQueueDepth(reactor string) {
	if !m.enabled {
		return
	}
	m.reactorQueueDepth.WithLabelValues(reactor).Dec()
}

// RecordWaitDuration records the time a task spent waiting in queue.
func (m *Manager) RecordWaitDuration(reactor string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.reactorWaitDuration.WithLabelValues(reactor).Observe(duration.Seconds())
}

// RecordTask records a task being processed by a reactor.
func (m *Manager) RecordTask(reactor, kind, outcome string) {
	if !m.enabled {
		return
	}
	m.reactorTasks.WithLabelValues(reactor, kind, outcome).Inc()
}
