package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

var _ domain.IdempotencyRepository = (*fakeIdempotencyRepo)(nil)

func TestCleanupWorker_Sweep_Batches(t *testing.T) {
	t.Parallel()

	repo := &fakeIdempotencyRepo{deleteResults: []int{2, 2, 1}}
	worker := NewCleanupWorker(repo, WithBatchSize(2))

	deleted, err := worker.Sweep(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if deleted != 5 {
		t.Fatalf("unexpected deleted total: got=%d want=5", deleted)
	}
	// Порции по 2: две полные и одна неполная, завершающая проход.
	if calls := repo.calls(); calls != 3 {
		t.Fatalf("unexpected delete calls: got=%d want=3", calls)
	}
}

func TestCleanupWorker_Sweep_Error(t *testing.T) {
	t.Parallel()

	repo := &fakeIdempotencyRepo{deleteErrors: []error{errors.New("boom")}}
	worker := NewCleanupWorker(repo, WithBatchSize(10))

	deleted, err := worker.Sweep(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected sweep error")
	}
	if deleted != 0 {
		t.Fatalf("unexpected deleted total: got=%d want=0", deleted)
	}
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &fakeIdempotencyRepo{deleteResults: []int{0, 0, 0}}
	worker := NewCleanupWorker(repo,
		WithInterval(5*time.Millisecond),
		WithBatchSize(10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := repo.calls(); calls == 0 {
		t.Fatal("expected cleanup to be called at least once")
	}
}

type fakeIdempotencyRepo struct {
	mu sync.Mutex

	deleteResults []int
	deleteErrors  []error
	callCount     int
}

func (f *fakeIdempotencyRepo) CreateProcessing(context.Context, string, string, time.Time) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (f *fakeIdempotencyRepo) Get(context.Context, string) (domain.IdempotencyRecord, error) {
	panic("not implemented")
}

func (f *fakeIdempotencyRepo) MarkDone(context.Context, string, []byte, int) error {
	panic("not implemented")
}

func (f *fakeIdempotencyRepo) MarkFailed(context.Context, string, []byte, int) error {
	panic("not implemented")
}

func (f *fakeIdempotencyRepo) DeleteExpired(_ context.Context, _ time.Time, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.callCount++

	if len(f.deleteErrors) > 0 {
		err := f.deleteErrors[0]
		f.deleteErrors = f.deleteErrors[1:]
		if err != nil {
			return 0, err
		}
	}

	if len(f.deleteResults) == 0 {
		return 0, nil
	}
	result := f.deleteResults[0]
	f.deleteResults = f.deleteResults[1:]
	return result, nil
}

func (f *fakeIdempotencyRepo) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}
