package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewBookingMetrics(t *testing.T) {
	metrics := newBookingMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newBookingMetricsWithRegisterer should not return nil")
	}

	if metrics.ordersPlaced == nil {
		t.Error("ordersPlaced counter should not be nil")
	}

	if metrics.ordersRejected == nil {
		t.Error("ordersRejected counter vec should not be nil")
	}

	if metrics.capacityConflicts == nil {
		t.Error("capacityConflicts counter should not be nil")
	}

	if metrics.orderDuration == nil {
		t.Error("orderDuration histogram should not be nil")
	}

	if metrics.catalogDuration == nil {
		t.Error("catalogDuration histogram should not be nil")
	}

	if metrics.catalogQueries == nil {
		t.Error("catalogQueries counter should not be nil")
	}

	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}

	if metrics.activeOrders == nil {
		t.Error("activeOrders gauge should not be nil")
	}
}

func TestNewBookingMetrics_ReRegisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newBookingMetricsWithRegisterer(reg)
	second := newBookingMetricsWithRegisterer(reg)

	if first.ordersPlaced != second.ordersPlaced {
		t.Error("re-registration should return the existing counter")
	}
}

func TestRecordOrderPlaced(t *testing.T) {
	reg := prometheus.NewRegistry()

	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_orders_placed_total",
		Help: "Test counter",
	})

	reg.MustRegister(ordersPlaced)

	metrics := &BookingMetrics{
		ordersPlaced: ordersPlaced,
	}

	metrics.RecordOrderPlaced()
	metrics.RecordOrderPlaced()

	metric := &dto.Metric{}
	if err := ordersPlaced.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordOrderRejected(t *testing.T) {
	reg := prometheus.NewRegistry()

	ordersRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_orders_rejected_total",
		Help: "Test counter vec",
	}, []string{"reason"})

	reg.MustRegister(ordersRejected)

	metrics := &BookingMetrics{
		ordersRejected: ordersRejected,
	}

	metrics.RecordOrderRejected("validation")
	metrics.RecordOrderRejected("validation")
	metrics.RecordOrderRejected("not_found")

	metric := &dto.Metric{}
	if err := ordersRejected.WithLabelValues("validation").(prometheus.Counter).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected validation rejections 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCapacityConflict(t *testing.T) {
	reg := prometheus.NewRegistry()

	capacityConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_capacity_conflicts_total",
		Help: "Test counter",
	})
	ordersRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_conflict_rejected_total",
		Help: "Test counter vec",
	}, []string{"reason"})

	reg.MustRegister(capacityConflicts, ordersRejected)

	metrics := &BookingMetrics{
		capacityConflicts: capacityConflicts,
		ordersRejected:    ordersRejected,
	}

	metrics.RecordCapacityConflict()

	metric := &dto.Metric{}
	if err := capacityConflicts.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0, got %f", metric.Counter.GetValue())
	}

	// Конфликт ёмкости засчитывается и как отказ с причиной insufficient_spaces.
	rejectedMetric := &dto.Metric{}
	if err := ordersRejected.WithLabelValues("insufficient_spaces").(prometheus.Counter).Write(rejectedMetric); err != nil {
		t.Fatalf("failed to write rejected metric: %v", err)
	}

	if rejectedMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected rejection value 1.0, got %f", rejectedMetric.Counter.GetValue())
	}
}

func TestRecordOrderDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	orderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_order_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(orderDuration)

	metrics := &BookingMetrics{
		orderDuration: orderDuration,
	}

	metrics.RecordOrderDuration(100 * time.Millisecond)
	metrics.RecordOrderDuration(500 * time.Millisecond)
	metrics.RecordOrderDuration(1 * time.Second)

	metric := &dto.Metric{}
	if err := orderDuration.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}

	// 0.1 + 0.5 + 1.0 = 1.6
	sum := metric.Histogram.GetSampleSum()
	if sum < 1.5 || sum > 1.7 {
		t.Errorf("expected sum around 1.6, got %f", sum)
	}
}

func TestRecordCatalogQuery(t *testing.T) {
	reg := prometheus.NewRegistry()

	catalogQueries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_catalog_queries_total",
		Help: "Test counter",
	})
	catalogDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_catalog_query_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(catalogQueries, catalogDuration)

	metrics := &BookingMetrics{
		catalogQueries:  catalogQueries,
		catalogDuration: catalogDuration,
	}

	metrics.RecordCatalogQuery(10 * time.Millisecond)
	metrics.RecordCatalogQuery(20 * time.Millisecond)

	metric := &dto.Metric{}
	if err := catalogQueries.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}

	histMetric := &dto.Metric{}
	if err := catalogDuration.Write(histMetric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}

	if histMetric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", histMetric.Histogram.GetSampleCount())
	}
}

func TestOrderInFlightLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()

	activeOrders := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_active_orders",
		Help: "Test gauge",
	})

	reg.MustRegister(activeOrders)

	metrics := &BookingMetrics{
		activeOrders: activeOrders,
	}

	metrics.RecordOrderInFlightStarted()
	metrics.RecordOrderInFlightStarted()
	metrics.RecordOrderInFlightFinished()

	gaugeMetric := &dto.Metric{}
	if err := activeOrders.Write(gaugeMetric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}

	if gaugeMetric.Gauge.GetValue() != 1.0 {
		t.Errorf("expected 1.0 active order, got %f", gaugeMetric.Gauge.GetValue())
	}
}

func TestRecordOutboxEvent(t *testing.T) {
	reg := prometheus.NewRegistry()

	outboxEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_outbox_events_total",
		Help: "Test counter",
	})

	reg.MustRegister(outboxEvents)

	metrics := &BookingMetrics{
		outboxEvents: outboxEvents,
	}

	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()

	metric := &dto.Metric{}
	if err := outboxEvents.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}
}
