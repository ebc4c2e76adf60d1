package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics содержит метрики оформления заказов и каталога.
type BookingMetrics struct {
	// Счётчики операций
	ordersPlaced   prometheus.Counter
	ordersRejected *prometheus.CounterVec

	// Отдельный счётчик проигранных гонок за последние места
	capacityConflicts prometheus.Counter

	// Гистограммы времени выполнения
	orderDuration   prometheus.Histogram
	catalogDuration prometheus.Histogram

	// Счётчики каталога и outbox
	catalogQueries prometheus.Counter
	outboxEvents   prometheus.Counter

	// Gauge для заказов в обработке
	activeOrders prometheus.Gauge
}

// NewBookingMetrics создаёт новый экземпляр метрик сервиса.
func NewBookingMetrics() *BookingMetrics {
	return newBookingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newBookingMetricsWithRegisterer(registerer prometheus.Registerer) *BookingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &BookingMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "booking_orders_placed_total",
			Help: "Total number of orders placed successfully",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "booking_orders_rejected_total",
			Help: "Total number of order placements rejected, by reason",
		}, []string{"reason"}),
		capacityConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "booking_capacity_conflicts_total",
			Help: "Total number of order placements lost to a capacity race",
		}),
		orderDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "booking_order_duration_seconds",
			Help:    "Duration of order placement transactions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		catalogDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "booking_catalog_query_duration_seconds",
			Help:    "Duration of catalog queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		catalogQueries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "booking_catalog_queries_total",
			Help: "Total number of catalog list queries served",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "booking_outbox_events_total",
			Help: "Total number of outbox events published",
		}),
		activeOrders: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "booking_active_orders",
			Help: "Number of order placements currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced увеличивает счётчик успешно оформленных заказов.
func (m *BookingMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых заказов по причине.
func (m *BookingMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordCapacityConflict увеличивает счётчик проигранных гонок за места.
func (m *BookingMetrics) RecordCapacityConflict() {
	m.capacityConflicts.Inc()
	m.RecordOrderRejected("insufficient_spaces")
}

// RecordOrderDuration записывает время транзакции оформления.
func (m *BookingMetrics) RecordOrderDuration(duration time.Duration) {
	m.orderDuration.Observe(duration.Seconds())
}

// RecordCatalogQuery фиксирует обслуженный запрос каталога и его длительность.
func (m *BookingMetrics) RecordCatalogQuery(duration time.Duration) {
	m.catalogQueries.Inc()
	m.catalogDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *BookingMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// RecordOrderInFlightStarted увеличивает количество заказов в обработке.
func (m *BookingMetrics) RecordOrderInFlightStarted() {
	m.activeOrders.Inc()
}

// RecordOrderInFlightFinished уменьшает количество заказов в обработке.
func (m *BookingMetrics) RecordOrderInFlightFinished() {
	m.activeOrders.Dec()
}
