package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics описывает операции с key-value хранилищем.
type StorageMetrics struct {
	opDuration *prometheus.HistogramVec
	opErrors   *prometheus.CounterVec
}

// NewStorageMetrics создаёт метрики хранилища в DefaultRegisterer.
func NewStorageMetrics() *StorageMetrics {
	return NewStorageMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorageMetricsWithRegisterer создаёт метрики хранилища в указанном registerer.
func NewStorageMetricsWithRegisterer(registerer prometheus.Registerer) *StorageMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorageMetrics{
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "cart_kv_operation_duration_seconds",
			Help:    "Duration of key-value store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		opErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_kv_operation_errors_total",
			Help: "Total number of failed key-value store operations",
		}, []string{"backend", "operation"}),
	}
}

// Observe записывает длительность операции и, при ошибке, увеличивает счётчик ошибок.
func (m *StorageMetrics) Observe(backend, operation string, duration time.Duration, failed bool) {
	m.opDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if failed {
		m.opErrors.WithLabelValues(backend, operation).Inc()
	}
}
