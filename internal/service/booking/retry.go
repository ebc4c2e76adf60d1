package booking

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/validation"
)

// RetryConfig конфигурация повторов транзакции оформления.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// executeWithRetry повторяет fn при транзиентных сбоях транзакции
// с экспоненциальной задержкой. Бизнес-отказы не повторяются.
func (e *engine) executeWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := e.retry.InitialDelay

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				e.logger.WithField("attempt", attempt).Info("transaction succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt < e.retry.MaxAttempts {
			e.logger.WithFields(log.Fields{
				"attempt": attempt,
				"delay":   delay,
				"error":   err,
			}).Warn("transaction failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * e.retry.BackoffFactor)
			if delay > e.retry.MaxDelay {
				delay = e.retry.MaxDelay
			}
		}
	}

	e.logger.WithFields(log.Fields{
		"max_attempts": e.retry.MaxAttempts,
		"error":        lastErr,
	}).Error("transaction failed after all retry attempts")
	return lastErr
}

// shouldRetry определяет, является ли ошибка транзиентной. Детерминированные
// отказы (валидация, not-found, нехватка мест) повторять бессмысленно:
// повтор увидел бы то же состояние.
func shouldRetry(err error) bool {
	if validation.IsValidationError(err) {
		return false
	}
	if domain.IsNotFound(err) || domain.IsConflict(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
