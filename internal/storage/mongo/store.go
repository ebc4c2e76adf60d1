// Package mongo — боевой бэкенд хранилища поверх MongoDB. Репозитории
// работают через collection-API драйвера; транзакционность обеспечивается
// сессиями, а guarded-декремент — одиночным условным UpdateOne.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

const (
	defaultConnTimeout = 5 * time.Second

	lessonsCollection     = "lessons"
	ordersCollection      = "orders"
	outboxCollection      = "outbox"
	idempotencyCollection = "idempotency"
)

// Store оборачивает подключение к MongoDB и выдаёт коллекции репозиториям.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open подключается к MongoDB и проверяет доступность базы.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancelPing()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, db: client.Database(database)}, nil
}

// Database возвращает raw-хендл базы, когда нужен низкоуровневый доступ.
func (s *Store) Database() *mongo.Database {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("mongo store is not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.client.Ping(pingCtx, nil)
}

// Close разрывает подключение к базе.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// WithinTransaction выполняет fn в одной серверной транзакции. Контекст,
// передаваемый в fn, несёт сессию: все вызовы репозиториев с этим контекстом
// попадают в границы транзакции и откатываются вместе при ошибке.
// Snapshot read concern гарантирует, что гонящиеся декременты не пройдут
// оба мимо предусловия.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	}, txOpts)
	return err
}

// EnsureIndexes создаёт индексы, на которые опираются выборки и TTL-зачистка.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	lessonIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "topic", Value: 1}}},
		{Keys: bson.D{{Key: "location", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
	}
	if _, err := s.db.Collection(lessonsCollection).Indexes().CreateMany(ctx, lessonIdx); err != nil {
		return fmt.Errorf("create lesson indexes: %w", err)
	}

	orderIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "paymentStatus", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := s.db.Collection(ordersCollection).Indexes().CreateMany(ctx, orderIdx); err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}

	outboxIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	}
	if _, err := s.db.Collection(outboxCollection).Indexes().CreateMany(ctx, outboxIdx); err != nil {
		return fmt.Errorf("create outbox indexes: %w", err)
	}

	ttl := int32(0)
	idemIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ttlAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(ttl),
		},
	}
	if _, err := s.db.Collection(idempotencyCollection).Indexes().CreateMany(ctx, idemIdx); err != nil {
		return fmt.Errorf("create idempotency indexes: %w", err)
	}

	return nil
}

var _ domain.TransactionRunner = (*Store)(nil)
