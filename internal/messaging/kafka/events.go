package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// Типы событий, которые сервис публикует наружу.
const (
	EventTypeOrderConfirmed = "order.confirmed"
	EventTypeLessonUpdated  = "lesson.updated"
)

// Типы агрегатов в transactional outbox: по ним паблишер выбирает
// схему события и целевой топик.
const (
	AggregateOrder  = "order"
	AggregateLesson = "lesson"
)

// Топики по умолчанию.
const (
	DefaultOrderTopic  = "booking.order-events"
	DefaultLessonTopic = "booking.lesson-events"
	DefaultDLQTopic    = "booking.dlq"
)

// OrderEvent — событие подтверждённого заказа. Несёт код подтверждения
// и итог заказа, чтобы потребители не ходили в сервис за деталями.
type OrderEvent struct {
	EventType        string    `json:"event_type"`
	OrderID          string    `json:"order_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	Status           string    `json:"status"`
	TotalAmount      float64   `json:"total_amount"`
	Lines            int       `json:"lines"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// NewOrderConfirmedEvent строит событие подтверждения из оформленного заказа.
func NewOrderConfirmedEvent(order domain.Order) OrderEvent {
	return OrderEvent{
		EventType:        EventTypeOrderConfirmed,
		OrderID:          order.ID,
		ConfirmationCode: order.ConfirmationCode(),
		Status:           string(order.Status),
		TotalAmount:      order.TotalAmount,
		Lines:            len(order.Lines),
		OccurredAt:       time.Now().UTC(),
	}
}

// LessonEvent — событие изменения занятия в каталоге. Changed перечисляет
// обновлённые поля, Spaces — остаток мест после изменения.
type LessonEvent struct {
	EventType  string    `json:"event_type"`
	LessonID   string    `json:"lesson_id"`
	Topic      string    `json:"topic"`
	Location   string    `json:"location"`
	Spaces     int64     `json:"spaces"`
	Changed    []string  `json:"changed,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLessonUpdatedEvent строит событие обновления из текущего состояния занятия.
func NewLessonUpdatedEvent(lesson domain.Lesson, changed []string) LessonEvent {
	return LessonEvent{
		EventType:  EventTypeLessonUpdated,
		LessonID:   lesson.ID,
		Topic:      lesson.Topic,
		Location:   lesson.Location,
		Spaces:     lesson.Spaces,
		Changed:    changed,
		OccurredAt: time.Now().UTC(),
	}
}
