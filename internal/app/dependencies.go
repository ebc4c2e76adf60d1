package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/storage/memory"
	mongostore "github.com/vladislavdragonenkov/booking/internal/storage/mongo"
)

// Dependencies содержит хранилища приложения за доменными интерфейсами.
// Ping и Close дают операционному слою доступ к бэкенду без знания драйвера.
type Dependencies struct {
	Lessons     domain.LessonRepository
	Orders      domain.OrderRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository
	Tx          domain.TransactionRunner

	Ping  func(ctx context.Context) error
	Close func(ctx context.Context) error
}

// NewDependencies собирает хранилища по выбранному драйверу.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		seedDemoCatalog(store)
		logger.Info("using in-memory storage")
		return &Dependencies{
			Lessons:     memory.NewLessonRepository(store),
			Orders:      memory.NewOrderRepository(store),
			Outbox:      memory.NewOutboxRepository(store),
			Idempotency: memory.NewIdempotencyRepository(),
			Tx:          store,
			Ping:        func(context.Context) error { return nil },
			Close:       func(context.Context) error { return nil },
		}, nil

	case StorageDriverMongo:
		store, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.WithField("database", cfg.MongoDatabase).Info("using mongo storage")
		return &Dependencies{
			Lessons:     mongostore.NewLessonRepository(store),
			Orders:      mongostore.NewOrderRepository(store),
			Outbox:      mongostore.NewOutboxRepository(store),
			Idempotency: mongostore.NewIdempotencyRepository(store),
			Tx:          store,
			Ping:        store.Ping,
			Close:       store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// seedDemoCatalog наполняет in-memory хранилище демо-занятиями, чтобы
// сервис был пригоден для локальной разработки сразу после старта.
func seedDemoCatalog(store *memory.Store) {
	lessons := []domain.Lesson{
		{Topic: "math", Location: "London", Price: 100, Spaces: 5, Description: "Algebra and geometry fundamentals"},
		{Topic: "math", Location: "Oxford", Price: 90, Spaces: 5, Description: "Calculus for beginners"},
		{Topic: "english", Location: "Bristol", Price: 80, Spaces: 5, Description: "Grammar and composition"},
		{Topic: "english", Location: "York", Price: 85, Spaces: 5, Description: "Creative writing workshop"},
		{Topic: "music", Location: "Bristol", Price: 120, Spaces: 5, Description: "Piano for all levels"},
		{Topic: "music", Location: "London", Price: 110, Spaces: 5, Description: "Guitar essentials"},
		{Topic: "science", Location: "Oxford", Price: 95, Spaces: 5, Description: "Physics experiments"},
		{Topic: "science", Location: "London", Price: 105, Spaces: 5, Description: "Chemistry in practice"},
		{Topic: "art", Location: "York", Price: 70, Spaces: 5, Description: "Watercolour painting"},
		{Topic: "drama", Location: "Bristol", Price: 75, Spaces: 5, Description: "Stage acting basics"},
	}
	for _, lesson := range lessons {
		store.SeedLesson(lesson)
	}
}
