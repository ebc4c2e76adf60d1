package domain

import "context"

// LessonRepository описывает требования к хранилищу занятий.
type LessonRepository interface {
	// Find возвращает занятия по фильтру с сортировкой и пагинацией.
	Find(ctx context.Context, query LessonQuery) ([]Lesson, error)
	// Count возвращает количество занятий, подходящих под фильтр.
	Count(ctx context.Context, filter LessonFilter) (int64, error)
	// FindByID возвращает занятие или ErrLessonNotFound, если его нет.
	FindByID(ctx context.Context, id string) (Lesson, error)
	// TryDecrement атомарно уменьшает spaces на qty, только если текущее
	// spaces >= qty. Проверка предусловия и запись — одна неделимая операция
	// хранилища; частичного эффекта не бывает. Возвращает ErrLessonNotFound
	// либо *InsufficientSpacesError.
	TryDecrement(ctx context.Context, id string, qty int64) error
	// ApplyFieldUpdate применяет административное обновление полей и
	// возвращает обновлённое занятие или ErrLessonNotFound.
	ApplyFieldUpdate(ctx context.Context, id string, update LessonUpdate) (Lesson, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Insert сохраняет новый заказ и возвращает его с присвоенным
	// идентификатором.
	Insert(ctx context.Context, order Order) (Order, error)
	// Find возвращает заказы по фильтру с сортировкой и пагинацией.
	Find(ctx context.Context, query OrderQuery) ([]Order, error)
	// Count возвращает количество заказов, подходящих под фильтр.
	Count(ctx context.Context, filter OrderFilter) (int64, error)
	// FindByID возвращает заказ или ErrOrderNotFound, если его нет.
	FindByID(ctx context.Context, id string) (Order, error)
	// Stats возвращает сводные показатели по заказам, включая тренд
	// за последние 7 дней.
	Stats(ctx context.Context) (OrderStats, error)
}

// TransactionRunner выполняет fn в границах одной транзакции хранилища.
// Ошибка из fn откатывает все записи, сделанные внутри; контекст, переданный
// в fn, несёт транзакционную сессию и обязан передаваться в вызовы репозиториев.
type TransactionRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
