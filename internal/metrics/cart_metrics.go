package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты загрузки снимка.
const (
	LoadResultLoaded    = "loaded"
	LoadResultEmpty     = "empty"
	LoadResultMalformed = "malformed"
	LoadResultError     = "error"
)

// Результаты записи снимка.
const (
	WriteResultOK         = "ok"
	WriteResultRetryError = "retry_error"
	WriteResultFailed     = "failed"
)

// CartMetrics содержит метрики корзины и очереди записи.
type CartMetrics struct {
	mutations     *prometheus.CounterVec
	loads         *prometheus.CounterVec
	cartLines     prometheus.Gauge
	cartUnits     prometheus.Gauge
	writes        *prometheus.CounterVec
	writeDuration prometheus.Histogram
	queueDepth    prometheus.Gauge
	droppedErrors prometheus.Counter
	events        *prometheus.CounterVec
}

// NewCartMetrics создаёт метрики в DefaultRegisterer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer создаёт метрики в указанном registerer (изолированные тесты).
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CartMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total number of cart mutations grouped by operation",
		}, []string{"operation"}),
		loads: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_snapshot_loads_total",
			Help: "Total number of initial snapshot loads grouped by result",
		}, []string{"result"}),
		cartLines: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "cart_lines",
			Help: "Number of distinct products currently in the cart",
		}),
		cartUnits: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "cart_units",
			Help: "Total quantity of products currently in the cart",
		}),
		writes: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_snapshot_writes_total",
			Help: "Total number of snapshot write attempts grouped by result",
		}, []string{"result"}),
		writeDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "cart_snapshot_write_duration_seconds",
			Help:    "Duration of a snapshot write including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		queueDepth: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "cart_write_queue_depth",
			Help: "Number of snapshot writes waiting in the queue",
		}),
		droppedErrors: registerCounter(registerer, prometheus.CounterOpts{
			Name: "cart_write_errors_dropped_total",
			Help: "Write errors not delivered to the error channel because it was full",
		}),
		events: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "cart_events_published_total",
			Help: "Total number of cart events handed to the publisher grouped by result",
		}, []string{"result"}),
	}
}

// RecordMutation увеличивает счётчик мутаций и обновляет размеры корзины.
func (m *CartMetrics) RecordMutation(operation string, lines, units int) {
	m.mutations.WithLabelValues(operation).Inc()
	m.SetCartSize(lines, units)
}

// RecordLoad фиксирует результат начальной загрузки.
func (m *CartMetrics) RecordLoad(result string) {
	m.loads.WithLabelValues(result).Inc()
}

// SetCartSize обновляет gauge размеров корзины.
func (m *CartMetrics) SetCartSize(lines, units int) {
	m.cartLines.Set(float64(lines))
	m.cartUnits.Set(float64(units))
}

// RecordWrite увеличивает счётчик попыток записи с результатом.
func (m *CartMetrics) RecordWrite(result string) {
	m.writes.WithLabelValues(result).Inc()
}

// RecordWriteDuration записывает длительность записи снимка.
func (m *CartMetrics) RecordWriteDuration(duration time.Duration) {
	m.writeDuration.Observe(duration.Seconds())
}

// SetQueueDepth обновляет глубину очереди записи.
func (m *CartMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// RecordDroppedError фиксирует ошибку записи, не попавшую в канал ошибок.
func (m *CartMetrics) RecordDroppedError() {
	m.droppedErrors.Inc()
}

// RecordEvent фиксирует результат публикации события.
func (m *CartMetrics) RecordEvent(result string) {
	m.events.WithLabelValues(result).Inc()
}
