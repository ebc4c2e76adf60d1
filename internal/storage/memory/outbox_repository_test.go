package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

func TestOutboxEnqueueAndPull(t *testing.T) {
	store := NewStore()
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	msg, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "65f1a2b3c4d5e6f7a8b9c0d1",
		EventType:     "order.confirmed",
		Payload:       []byte(`{"total":30}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected assigned message ID")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 || pending[0].EventType != "order.confirmed" {
		t.Fatalf("unexpected pending messages: %+v", pending)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestOutboxMarkSentAndFailed(t *testing.T) {
	store := NewStore()
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	first, _ := repo.Enqueue(ctx, domain.OutboxMessage{EventType: "order.confirmed"})
	second, _ := repo.Enqueue(ctx, domain.OutboxMessage{EventType: "order.confirmed"})

	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, second.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending messages, got %d", len(pending))
	}

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for unknown ID, got %v", err)
	}
}
