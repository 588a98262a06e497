package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initTransferMetrics initializes network transfer metrics.
func (m *Manager) initTransferMetrics(cfg Config) {
	m.transferTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_total",
			Help: "Total number of completed transfers",
		},
		[]string{"outcome"},
	)

	m.transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transfer_duration_seconds",
			Help:    "Transfer duration in seconds",
			Buckets: cfg.TransferDurationBuckets,
		},
		[]string{"outcome"},
	)

	m.transferBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transfer_bytes_total",
			Help: "Total number of body bytes spooled",
		},
	)

	m.transfersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "transfers_active",
			Help: "Current number of in-flight transfers",
		},
	)

	m.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of media cache lookups",
		},
		[]string{"result"},
	)

	m.registry.MustRegister(m.transferTotal)
	m.registry.MustRegister(m.transferDuration)
	m.registry.MustRegister(m.transferBytes)
	m.registry.MustRegister(m.transfersActive)
	m.registry.MustRegister(m.cacheLookups)
}

// RecordTransfer records a finished transfer with its outcome, duration,
// and spooled byte count.
func (m *Manager) RecordTransfer(outcome string, duration time.Duration, bytes int64) {
	if !m.enabled {
		return
	}
	m.transferTotal.WithLabelValues(outcome).Inc()
	m.transferDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if bytes > 0 {
		m.transferBytes.Add(float64(bytes))
	}
}

// IncActiveTransfers increments the in-flight transfer count.
func (m *Manager) IncActiveTransfers() {
	if !m.enabled {
		return
	}
	m.transfersActive.Inc()
}

// DecActiveTransfers decrements the in-flight transfer count.
func (m *Manager) DecActiveTransfers() {
	if !m.enabled {
		return
	}
	m.transfersActive.Dec()
}

// RecordCacheLookup records a media cache hit or miss.
func (m *Manager) RecordCacheLookup(hit bool) {
	if !m.enabled {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
