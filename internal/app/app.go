// Package app собирает сервис бронирования занятий: хранилище, движок
// заказов, каталог, HTTP API, фоновые воркеры и операционный сервер.
package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/booking/internal/health"
	"github.com/vladislavdragonenkov/booking/internal/service/booking"
	"github.com/vladislavdragonenkov/booking/internal/service/catalog"
	"github.com/vladislavdragonenkov/booking/internal/service/idempotency"
	"github.com/vladislavdragonenkov/booking/internal/service/outbox"
	"github.com/vladislavdragonenkov/booking/internal/service/rest"
	"github.com/vladislavdragonenkov/booking/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run запускает сервис и блокируется до отмены контекста или фатальной
// ошибки API-сервера. Возвращает ctx.Err() при штатной остановке.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	kafkaProducer, eventPublisher, dlqPublisher := initMessaging(cfg, logger)
	defer closeMessaging(kafkaProducer, logger)

	engine := booking.NewEngine(
		deps.Lessons,
		deps.Orders,
		deps.Outbox,
		deps.Tx,
		logger.WithField("component", "booking-engine"),
		booking.WithTxTimeout(cfg.TxTimeout),
	)
	catalogSvc := catalog.NewService(
		deps.Lessons,
		logger.WithField("component", "catalog"),
		catalog.WithOutbox(deps.Outbox),
	)

	router := rest.NewRouter(
		rest.NewLessonHandler(catalogSvc, logger.WithField("component", "http")),
		rest.NewOrderHandler(engine, deps.Idempotency, logger.WithField("component", "http")),
		logger.WithField("component", "http"),
	)

	var wg sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Outbox-воркер публикует подтверждённые заказы в Kafka. Без брокеров
	// события копятся в outbox до следующего запуска с Kafka.
	if kafkaProducer != nil {
		worker := outbox.NewWorker(deps.Outbox, eventPublisher,
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(dlqPublisher),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(workerCtx)
		}()
	} else {
		logger.Info("kafka brokers not configured, outbox worker disabled")
	}

	cleanup := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanup.Run(workerCtx)
	}()

	v, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(v)
	healthHandler.RegisterChecker("storage", healthcheck.NewPingChecker("storage", deps.Ping))

	opsSrv := startOpsServer(ctx, cfg.OpsAddr, logger, healthHandler)

	apiSrv := &http.Server{Addr: cfg.APIAddr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API сервер слушает %s", cfg.APIAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем API сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(opsSrv, logger)
		stopWorkers()
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(opsSrv, logger)
		stopWorkers()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startOpsServer запускает операционный HTTP-сервер: метрики Prometheus
// и health-пробы.
func startOpsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("ops server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
