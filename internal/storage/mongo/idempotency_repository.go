package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

type idempotencyDoc struct {
	Key          string    `bson:"_id"`
	RequestHash  string    `bson:"requestHash"`
	ResponseBody []byte    `bson:"responseBody,omitempty"`
	HTTPStatus   int       `bson:"httpStatus,omitempty"`
	Status       string    `bson:"status"`
	TTLAt        time.Time `bson:"ttlAt"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

func (d idempotencyDoc) toDomain() domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          d.Key,
		RequestHash:  d.RequestHash,
		ResponseBody: d.ResponseBody,
		HTTPStatus:   d.HTTPStatus,
		Status:       domain.IdempotencyStatus(d.Status),
		TTLAt:        d.TTLAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type idempotencyRepository struct {
	coll *mongo.Collection
}

// NewIdempotencyRepository создаёт Mongo-реализацию IdempotencyRepository.
// Уникальность ключа гарантирует _id коллекции; протухшие записи дочищает
// TTL-индекс по ttlAt, DeleteExpired остаётся страховкой.
func NewIdempotencyRepository(store *Store) domain.IdempotencyRepository {
	return &idempotencyRepository{coll: store.Database().Collection(idempotencyCollection)}
}

func (r *idempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)

	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	if ttlAt.IsZero() {
		ttlAt = now.Add(domain.IdempotencyProcessingTTL)
	}

	doc := idempotencyDoc{
		Key:         key,
		RequestHash: requestHash,
		Status:      string(domain.IdempotencyStatusProcessing),
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency record: %w", err)
		}
		existing, getErr := r.Get(ctx, key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, fmt.Errorf("load existing idempotency record: %w", getErr)
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}
	return doc.toDomain(), nil
}

func (r *idempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	var doc idempotencyDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("find idempotency record: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *idempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepository) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	now := time.Now().UTC()
	// Завершённая запись живёт дольше processing: сохранённый ответ
	// должен быть доступен для replay.
	update := bson.M{"$set": bson.M{
		"status":       string(status),
		"responseBody": responseBody,
		"httpStatus":   httpStatus,
		"ttlAt":        now.Add(domain.IdempotencyCompletedTTL),
		"updatedAt":    now,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": key}, update)
	if err != nil {
		return fmt.Errorf("finish idempotency record: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdempotencyKeyNotFound
	}
	return nil
}

func (r *idempotencyRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	// DeleteMany не умеет limit: выбираем ключи страницей и удаляем по списку.
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{"ttlAt": bson.M{"$lte": before}}, opts)
	if err != nil {
		return 0, fmt.Errorf("find expired idempotency records: %w", err)
	}
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return 0, fmt.Errorf("decode expired idempotency record: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return 0, fmt.Errorf("iterate expired idempotency records: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	res, err := r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", err)
	}
	return int(res.DeletedCount), nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
