// Package memory — in-memory реализация хранилища для локальной разработки
// и тестов. Транзакционность обеспечивается эксклюзивной блокировкой стора
// и снимком состояния: ошибка внутри транзакции возвращает снимок на место,
// поэтому семантика «всё или ничего» совпадает с боевым бэкендом.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// Store держит все коллекции под одним мьютексом, чтобы транзакция могла
// охватить занятия, заказы и outbox разом.
type Store struct {
	mu      sync.RWMutex
	lessons map[string]domain.Lesson
	orders  map[string]domain.Order
	outbox  map[string]outboxRecord
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		lessons: make(map[string]domain.Lesson),
		orders:  make(map[string]domain.Order),
		outbox:  make(map[string]outboxRecord),
	}
}

// SeedLesson кладёт занятие напрямую, минуя бизнес-логику (bootstrap и тесты).
// Пустой ID заменяется свежим ObjectID, чтобы формат совпадал с боевым бэкендом.
func (s *Store) SeedLesson(lesson domain.Lesson) domain.Lesson {
	if lesson.ID == "" {
		lesson.ID = primitive.NewObjectID().Hex()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[lesson.ID] = lesson
	return lesson
}

type txKey struct{}

func inTransaction(ctx context.Context) bool {
	active, _ := ctx.Value(txKey{}).(bool)
	return active
}

// WithinTransaction выполняет fn под эксклюзивной блокировкой стора.
// Перед вызовом снимается снимок всех коллекций; ошибка fn возвращает
// снимок на место, так что частичных эффектов не остаётся.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTransaction(ctx) {
		// Вложенные транзакции выполняются в рамках объемлющей.
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lessonsSnap := cloneLessonMap(s.lessons)
	ordersSnap := cloneOrderMap(s.orders)
	outboxSnap := cloneOutboxMap(s.outbox)

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.lessons = lessonsSnap
		s.orders = ordersSnap
		s.outbox = outboxSnap
		return err
	}
	return nil
}

// read выполняет fn под read-блокировкой, если вызов не внутри транзакции.
func (s *Store) read(ctx context.Context, fn func()) {
	if inTransaction(ctx) {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// write выполняет fn под write-блокировкой, если вызов не внутри транзакции.
func (s *Store) write(ctx context.Context, fn func()) {
	if inTransaction(ctx) {
		fn()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func cloneLessonMap(src map[string]domain.Lesson) map[string]domain.Lesson {
	dst := make(map[string]domain.Lesson, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func cloneOrderMap(src map[string]domain.Order) map[string]domain.Order {
	dst := make(map[string]domain.Order, len(src))
	for k, v := range src {
		dst[k] = cloneOrder(v)
	}
	return dst
}

func cloneOrder(order domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	return order
}

func cloneOutboxMap(src map[string]outboxRecord) map[string]outboxRecord {
	dst := make(map[string]outboxRecord, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// outboxRecord хранит сообщение и служебные поля публикации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

var _ domain.TransactionRunner = (*Store)(nil)
