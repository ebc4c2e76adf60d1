package booking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/booking/internal/storage/memory"
	"github.com/vladislavdragonenkov/booking/internal/validation"
)

func newTestEngine(t *testing.T) (Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	eng := NewEngine(
		memory.NewLessonRepository(store),
		memory.NewOrderRepository(store),
		memory.NewOutboxRepository(store),
		store,
		nil,
		WithoutMetrics(),
	)
	return eng, store
}

func TestPlaceOrder_Success(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 3})

	view, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "John Smith",
		Phone: "+44 1234 567890",
		Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.Equal(t, float64(30), view.TotalAmount)
	assert.Equal(t, "confirmed", view.Status)
	assert.Equal(t, "pending", view.PaymentStatus)
	assert.NotEmpty(t, view.ConfirmationCode)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "math", view.Lines[0].Topic)
	assert.Equal(t, float64(30), view.Lines[0].Amount)

	// Ёмкость списана до нуля.
	lessons := memory.NewLessonRepository(store)
	after, err := lessons.FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Spaces)
}

func TestPlaceOrder_SoldOut(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 0})

	_, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "John Smith",
		Phone: "+44 1234 567890",
		Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	var conflict *domain.InsufficientSpacesError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(0), conflict.Available)
	assert.Equal(t, int64(1), conflict.Requested)

	// Ёмкость не ушла в минус.
	lessons := memory.NewLessonRepository(store)
	after, err := lessons.FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after.Spaces)
}

func TestPlaceOrder_AllOrNothing(t *testing.T) {
	eng, store := newTestEngine(t)
	lessonA := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 5})
	lessonB := store.SeedLesson(domain.Lesson{Topic: "music", Location: "Bristol", Price: 20, Spaces: 0})

	_, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "John Smith",
		Phone: "+44 1234 567890",
		Lines: []RequestLine{
			{LessonID: lessonA.ID, Quantity: 2},
			{LessonID: lessonB.ID, Quantity: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	// Списание по первой позиции откатилось вместе с транзакцией.
	lessons := memory.NewLessonRepository(store)
	afterA, err := lessons.FindByID(context.Background(), lessonA.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), afterA.Spaces)

	// Заказ не создан.
	orders := memory.NewOrderRepository(store)
	count, err := orders.Count(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestPlaceOrder_ValidationBeforeStore(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 5})

	tests := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{
			name: "digits in name",
			req: PlaceOrderRequest{
				Name:  "123",
				Phone: "+44 1234 567890",
				Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 1}},
			},
		},
		{
			name: "bad phone",
			req: PlaceOrderRequest{
				Name:  "John Smith",
				Phone: "phone",
				Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 1}},
			},
		},
		{
			name: "no lines",
			req: PlaceOrderRequest{
				Name:  "John Smith",
				Phone: "+44 1234 567890",
			},
		},
		{
			name: "zero quantity",
			req: PlaceOrderRequest{
				Name:  "John Smith",
				Phone: "+44 1234 567890",
				Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 0}},
			},
		},
		{
			name: "malformed lesson id",
			req: PlaceOrderRequest{
				Name:  "John Smith",
				Phone: "+44 1234 567890",
				Lines: []RequestLine{{LessonID: "nope", Quantity: 1}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.PlaceOrder(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, validation.IsValidationError(err))
		})
	}

	// Ни одна из попыток не тронула ёмкость.
	lessons := memory.NewLessonRepository(store)
	after, err := lessons.FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), after.Spaces)
}

func TestPlaceOrder_ValidationAggregatesViolations(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "123",
		Phone: "phone",
		Lines: []RequestLine{{LessonID: "nope", Quantity: 0}},
	})
	require.Error(t, err)
	require.True(t, validation.IsValidationError(err))

	verr := err.(*validation.Error)
	assert.Len(t, verr.Violations, 4)
}

func TestPlaceOrder_UnknownLesson(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "John Smith",
		Phone: "+44 1234 567890",
		Lines: []RequestLine{{LessonID: "65f1a2b3c4d5e6f7a8b9c0d1", Quantity: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrLessonNotFound)
}

func TestPlaceOrder_EnqueuesOutboxEvent(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 5})

	view, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "John Smith",
		Phone: "+44 1234 567890",
		Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	outbox := memory.NewOutboxRepository(store)
	pending, err := outbox.PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, kafka.AggregateOrder, pending[0].AggregateType)
	assert.Equal(t, view.ID, pending[0].AggregateID)
	assert.Equal(t, "order.confirmed", pending[0].EventType)

	// Payload — готовое событие: код подтверждения и итог заказа.
	var event kafka.OrderEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &event))
	assert.Equal(t, view.ID, event.OrderID)
	assert.Equal(t, view.ConfirmationCode, event.ConfirmationCode)
	assert.Equal(t, 10.0, event.TotalAmount)
	assert.Equal(t, 1, event.Lines)
}

func TestPlaceOrder_ConcurrentLastSpaces(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 3})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = eng.PlaceOrder(context.Background(), PlaceOrderRequest{
				Name:  "John Smith",
				Phone: "+44 1234 567890",
				Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 2}},
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t, domain.IsConflict(err))
		}
	}
	assert.Equal(t, 1, winners)

	lessons := memory.NewLessonRepository(store)
	after, err := lessons.FindByID(context.Background(), lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), after.Spaces)
}

func TestList_FilterAndPagination(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 100})

	for i := 0; i < 5; i++ {
		_, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
			Name:  "John Smith",
			Phone: "+44 1234 567890",
			Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	page, err := eng.List(context.Background(), ListParams{Status: "confirmed", Limit: "2", Page: "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.Pages)
	assert.Len(t, page.Orders, 2)

	empty, err := eng.List(context.Background(), ListParams{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Total)
	assert.Empty(t, empty.Orders)
}

func TestList_InvalidParams(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.List(context.Background(), ListParams{Status: "bogus", Order: "sideways"})
	require.Error(t, err)
	require.True(t, validation.IsValidationError(err))
	assert.Len(t, err.(*validation.Error).Violations, 2)
}

func TestGet(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 5})

	placed, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
		Name:  "John Smith",
		Phone: "+44 1234 567890",
		Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	view, err := eng.Get(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.ConfirmationCode, view.ConfirmationCode)
}

func TestGet_InvalidID(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, validation.IsValidationError(err))
}

func TestGet_NotFound(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Get(context.Background(), "65f1a2b3c4d5e6f7a8b9c0d1")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestStats(t *testing.T) {
	eng, store := newTestEngine(t)
	lesson := store.SeedLesson(domain.Lesson{Topic: "math", Location: "London", Price: 10, Spaces: 100})

	for i := 0; i < 3; i++ {
		_, err := eng.PlaceOrder(context.Background(), PlaceOrderRequest{
			Name:  "John Smith",
			Phone: "+44 1234 567890",
			Lines: []RequestLine{{LessonID: lesson.ID, Quantity: 2}},
		})
		require.NoError(t, err)
	}

	stats, err := eng.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, float64(60), stats.TotalRevenue)
	assert.Equal(t, float64(20), stats.AverageOrderValue)
	assert.Equal(t, int64(3), stats.TotalLineItems)
	require.Len(t, stats.ByStatus, 1)
	assert.Equal(t, domain.OrderStatusConfirmed, stats.ByStatus[0].Status)
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation error", &validation.Error{Violations: []error{domain.ErrNameRequired}}, false},
		{"lesson not found", domain.ErrLessonNotFound, false},
		{"capacity conflict", domain.ErrInsufficientSpaces, false},
		{"wrapped conflict", &domain.InsufficientSpacesError{Available: 0, Requested: 1}, false},
		{"context canceled", context.Canceled, false},
		{"transient failure", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRetry(tt.err))
		})
	}
}

func TestExecuteWithRetry_TransientThenSuccess(t *testing.T) {
	store := memory.NewStore()
	eng := NewEngine(
		memory.NewLessonRepository(store),
		memory.NewOrderRepository(store),
		memory.NewOutboxRepository(store),
		store,
		nil,
		WithoutMetrics(),
		WithRetryConfig(RetryConfig{MaxAttempts: 3, InitialDelay: 1, MaxDelay: 2, BackoffFactor: 2}),
	).(*engine)

	attempts := 0
	err := eng.executeWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_BusinessErrorNotRetried(t *testing.T) {
	store := memory.NewStore()
	eng := NewEngine(
		memory.NewLessonRepository(store),
		memory.NewOrderRepository(store),
		memory.NewOutboxRepository(store),
		store,
		nil,
		WithoutMetrics(),
	).(*engine)

	attempts := 0
	err := eng.executeWithRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return domain.ErrLessonNotFound
	})
	assert.ErrorIs(t, err, domain.ErrLessonNotFound)
	assert.Equal(t, 1, attempts)
}
