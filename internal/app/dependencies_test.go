package app

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps.Lessons == nil || deps.Orders == nil || deps.Outbox == nil || deps.Idempotency == nil || deps.Tx == nil {
		t.Fatal("expected all repositories to be wired")
	}

	if err := deps.Ping(context.Background()); err != nil {
		t.Errorf("expected memory ping to succeed, got %v", err)
	}
	if err := deps.Close(context.Background()); err != nil {
		t.Errorf("expected memory close to succeed, got %v", err)
	}
}

func TestNewDependencies_SeedsDemoCatalog(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total, err := deps.Lessons.Count(context.Background(), domain.LessonFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total == 0 {
		t.Error("expected demo catalog to be seeded for memory driver")
	}
}

func TestNewDependencies_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
