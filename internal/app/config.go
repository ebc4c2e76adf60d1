package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Доступные драйверы хранилища.
const (
	StorageDriverMemory = "memory"
	StorageDriverMongo  = "mongo"
)

// Config описывает настройки запуска приложения.
type Config struct {
	APIAddr string
	OpsAddr string

	StorageDriver string
	MongoURI      string
	MongoDatabase string

	TxTimeout time.Duration

	KafkaBrokers string
	OrderTopic   string
	LessonTopic  string
	DLQTopic     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию по умолчанию: in-memory хранилище,
// API на :8080 и операционный сервер (метрики, health) на :9090.
func DefaultConfig() Config {
	return Config{
		APIAddr:                     ":8080",
		OpsAddr:                     ":9090",
		StorageDriver:               StorageDriverMemory,
		MongoURI:                    "mongodb://localhost:27017",
		MongoDatabase:               "booking",
		TxTimeout:                   10 * time.Second,
		OrderTopic:                  "booking.order-events",
		LessonTopic:                 "booking.lesson-events",
		DLQTopic:                    "booking.dlq",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            200 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// ReadConfig собирает конфигурацию из переменных окружения BOOKING_*
// поверх значений по умолчанию.
func ReadConfig() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("BOOKING_API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("BOOKING_OPS_ADDR"); v != "" {
		cfg.OpsAddr = v
	}
	if v := os.Getenv("BOOKING_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = v
	}
	if v := os.Getenv("BOOKING_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("BOOKING_MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv("BOOKING_ORDER_TOPIC"); v != "" {
		cfg.OrderTopic = v
	}
	if v := os.Getenv("BOOKING_LESSON_TOPIC"); v != "" {
		cfg.LessonTopic = v
	}
	if v := os.Getenv("BOOKING_DLQ_TOPIC"); v != "" {
		cfg.DLQTopic = v
	}

	var err error
	if cfg.TxTimeout, err = envDuration("BOOKING_TX_TIMEOUT", cfg.TxTimeout); err != nil {
		return cfg, err
	}
	if cfg.OutboxPollInterval, err = envDuration("BOOKING_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval); err != nil {
		return cfg, err
	}
	if cfg.OutboxBatchSize, err = envInt("BOOKING_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize); err != nil {
		return cfg, err
	}
	if cfg.OutboxMaxAttempts, err = envInt("BOOKING_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts); err != nil {
		return cfg, err
	}
	if cfg.OutboxRetryDelay, err = envDuration("BOOKING_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay); err != nil {
		return cfg, err
	}
	if cfg.IdempotencyCleanupInterval, err = envDuration("BOOKING_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval); err != nil {
		return cfg, err
	}
	if cfg.IdempotencyCleanupBatchSize, err = envInt("BOOKING_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("mongo driver requires BOOKING_MONGO_URI")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("mongo driver requires BOOKING_MONGO_DATABASE")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	if c.APIAddr == "" {
		return fmt.Errorf("API address must not be empty")
	}
	if c.OpsAddr == "" {
		return fmt.Errorf("ops address must not be empty")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("transaction timeout must be positive")
	}
	if c.OutboxPollInterval <= 0 {
		return fmt.Errorf("outbox poll interval must be positive")
	}
	if c.OutboxBatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive")
	}
	if c.OutboxMaxAttempts <= 0 {
		return fmt.Errorf("outbox max attempts must be positive")
	}
	if c.IdempotencyCleanupInterval <= 0 {
		return fmt.Errorf("idempotency cleanup interval must be positive")
	}
	if c.IdempotencyCleanupBatchSize <= 0 {
		return fmt.Errorf("idempotency cleanup batch size must be positive")
	}
	return nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func envInt(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
