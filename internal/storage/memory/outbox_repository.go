package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// outboxRepositoryInMemory — transactional outbox поверх Store. Записи,
// добавленные внутри транзакции, откатываются вместе с ней.
type outboxRepositoryInMemory struct {
	store *Store
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepositoryInMemory{store: store}
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его идентификатор.
func (r *outboxRepositoryInMemory) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.store.write(ctx, func() {
		r.store.outbox[msg.ID] = outboxRecord{
			msg:       msg,
			status:    "pending",
			createdAt: now,
			updatedAt: now,
		}
	})
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending`.
func (r *outboxRepositoryInMemory) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var result []domain.OutboxMessage
	r.store.read(ctx, func() {
		result = make([]domain.OutboxMessage, 0, limit)
		for _, rec := range r.store.outbox {
			if rec.status != "pending" {
				continue
			}
			result = append(result, rec.msg)
			if len(result) >= limit {
				break
			}
		}
	})
	return result, nil
}

// Stats отдаёт размер backlog и возраст самой старой pending-записи.
func (r *outboxRepositoryInMemory) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	r.store.read(ctx, func() {
		for _, rec := range r.store.outbox {
			if rec.status != "pending" {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.createdAt
			}
		}
	})
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepositoryInMemory) MarkSent(ctx context.Context, id string) error {
	return r.mark(ctx, id, "sent")
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepositoryInMemory) MarkFailed(ctx context.Context, id string) error {
	return r.mark(ctx, id, "failed")
}

func (r *outboxRepositoryInMemory) mark(ctx context.Context, id, status string) error {
	var err error
	r.store.write(ctx, func() {
		rec, ok := r.store.outbox[id]
		if !ok {
			err = domain.ErrOutboxPublish
			return
		}
		rec.status = status
		rec.attemptCnt++
		rec.updatedAt = time.Now().UTC()
		r.store.outbox[id] = rec
	})
	return err
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)
