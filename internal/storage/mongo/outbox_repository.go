package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

type outboxDoc struct {
	ID            string    `bson:"_id"`
	AggregateType string    `bson:"aggregateType"`
	AggregateID   string    `bson:"aggregateId"`
	EventType     string    `bson:"eventType"`
	Payload       []byte    `bson:"payload"`
	Status        string    `bson:"status"`
	AttemptCount  int       `bson:"attemptCount"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

func (d outboxDoc) toDomain() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            d.ID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       d.Payload,
	}
}

type outboxRepository struct {
	coll *mongo.Collection
}

// NewOutboxRepository создаёт Mongo-реализацию transactional outbox.
// Enqueue, вызванный внутри WithinTransaction, пишет в той же сессии
// и откатывается вместе с заказом.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{coll: store.Database().Collection(outboxCollection)}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc := outboxDoc{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       msg.Payload,
		Status:        outboxStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"status": outboxStatusPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := make([]domain.OutboxMessage, 0, limit)
	for cursor.Next(ctx) {
		var doc outboxDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode outbox message: %w", err)
		}
		msgs = append(msgs, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return msgs, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats

	count, err := r.coll.CountDocuments(ctx, bson.M{"status": outboxStatusPending})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("count pending outbox messages: %w", err)
	}
	stats.PendingCount = int(count)
	if count == 0 {
		return stats, nil
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	var oldest outboxDoc
	if err := r.coll.FindOne(ctx, bson.M{"status": outboxStatusPending}, opts).Decode(&oldest); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return stats, nil
		}
		return domain.OutboxStats{}, fmt.Errorf("find oldest pending outbox message: %w", err)
	}
	stats.OldestPendingAt = oldest.CreatedAt
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxStatusSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, outboxStatusFailed)
}

func (r *outboxRepository) mark(ctx context.Context, id, status string) error {
	update := bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"attemptCount": 1},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mark outbox message %s: %w", status, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrOutboxPublish
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
