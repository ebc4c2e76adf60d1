// Package outbox доставляет записи transactional outbox во внешний брокер.
// Заказы и обновления каталога пишутся в outbox той же транзакцией, что и
// доменное изменение; воркер асинхронно выгребает pending-записи и публикует
// их, так что событие не теряется даже при падении между commit и publish.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booking_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "booking_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// Worker выгребает pending-записи из outbox и доставляет их через publisher.
// Запись, не доставленная за maxAttempts попыток, уходит в DLQ (если он
// настроен) и помечается failed.
type Worker struct {
	repo        domain.OutboxRepository
	publisher   domain.OutboxPublisher
	deadLetters domain.OutboxPublisher
	logger      *log.Entry
	pollEvery   time.Duration
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
}

// Option настраивает Worker.
type Option func(*Worker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDLQPublisher задаёт publisher для записей, исчерпавших попытки доставки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) {
		w.deadLetters = publisher
	}
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollEvery = interval
		}
	}
}

// WithBatchSize задаёт размер порции pending-записей за один проход.
func WithBatchSize(batchSize int) Option {
	return func(w *Worker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMaxAttempts задаёт число попыток доставки до failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(w *Worker) {
		if maxAttempts > 0 {
			w.maxAttempts = maxAttempts
		}
	}
}

// WithRetryBaseDelay задаёт базовую задержку между попытками; каждая
// следующая попытка удваивает её. Ноль отключает задержку.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay >= 0 {
			w.baseDelay = delay
		}
	}
}

// NewWorker создаёт outbox-воркер.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	w := &Worker{
		repo:        repo,
		publisher:   publisher,
		logger:      log.WithField("component", "outbox-worker"),
		pollEvery:   defaultPollInterval,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run опрашивает outbox с заданным интервалом до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	w.Drain(ctx)

	ticker := time.NewTicker(w.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain забирает одну порцию pending-записей и доставляет каждую.
func (w *Worker) Drain(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.updateBacklogGauges(ctx)

	batch, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox records")
		return
	}
	if len(batch) == 0 {
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		w.dispatch(ctx, msg)
	}

	w.updateBacklogGauges(ctx)
}

// dispatch доставляет одну запись и фиксирует итог в хранилище.
func (w *Worker) dispatch(ctx context.Context, msg domain.OutboxMessage) {
	err := w.deliver(ctx, msg)
	if err == nil {
		if markErr := w.repo.MarkSent(ctx, msg.ID); markErr != nil {
			w.logger.WithError(markErr).WithField("outbox_id", msg.ID).Warn("failed to mark outbox record as sent")
		}
		return
	}

	w.logger.WithError(err).WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
	}).Error("outbox delivery failed")
	publishAttempts.WithLabelValues("failed").Inc()

	if dlqErr := w.deadLetter(msg, err); dlqErr != nil {
		w.logger.WithError(dlqErr).WithField("outbox_id", msg.ID).Warn("failed to publish dead letter")
		publishAttempts.WithLabelValues("dlq_failed").Inc()
	}
	if markErr := w.repo.MarkFailed(ctx, msg.ID); markErr != nil {
		w.logger.WithError(markErr).WithField("outbox_id", msg.ID).Warn("failed to mark outbox record as failed")
	}
}

// deliver публикует запись, удваивая задержку между попытками.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	delay := w.baseDelay
	var lastErr error

	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			publishAttempts.WithLabelValues("sent").Inc()
			return nil
		}
		publishAttempts.WithLabelValues("retry_error").Inc()
	}

	return fmt.Errorf("delivery failed after %d attempts: %w", w.maxAttempts, lastErr)
}

// deadLetter заворачивает запись в конверт с причиной отказа и отправляет
// в DLQ. Без настроенного DLQ-паблишера запись просто помечается failed.
func (w *Worker) deadLetter(msg domain.OutboxMessage, cause error) error {
	if w.deadLetters == nil {
		return nil
	}

	envelope, err := json.Marshal(map[string]any{
		"outbox_id":        msg.ID,
		"aggregate_type":   msg.AggregateType,
		"aggregate_id":     msg.AggregateID,
		"event_type":       msg.EventType,
		"payload":          json.RawMessage(msg.Payload),
		"publish_error":    cause.Error(),
		"dlq_published_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	dead := msg
	dead.Payload = envelope
	if err := w.deadLetters.Publish(dead); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (w *Worker) updateBacklogGauges(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		oldestPendingAge.Set(0)
		return
	}

	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	oldestPendingAge.Set(age)
}
