package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего имени покупателя.
	ErrNameRequired = errors.New("name is required")
	// Ошибка имени с символами вне букв и пробелов.
	ErrNameInvalid = errors.New("name must contain only letters and spaces")
	// Ошибка отсутствующего телефона.
	ErrPhoneRequired = errors.New("phone is required")
	// Ошибка телефона, не подходящего под принятый шаблон.
	ErrPhoneInvalid = errors.New("invalid phone format")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("at least one lesson is required")
	// Ошибка при некорректном количестве в позиции (<= 0).
	ErrLineQuantityInvalid = errors.New("quantity must be a positive integer")
	// Ошибка отрицательной цены в позиции.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match lines sum")
	// Ошибка синтаксически некорректного идентификатора занятия.
	ErrLessonIDInvalid = errors.New("invalid lesson ID")
	// Ошибка отсутствующего предмета занятия.
	ErrTopicRequired = errors.New("topic is required")
	// Ошибка отсутствующего места проведения.
	ErrLocationRequired = errors.New("location is required")
	// Ошибка отрицательной цены занятия.
	ErrPriceNegative = errors.New("price must be non-negative")
	// Ошибка отрицательного количества мест.
	ErrSpacesNegative = errors.New("spaces must be non-negative")
	// Ошибка пустого тела обновления занятия.
	ErrUpdateEmpty = errors.New("no update data provided")

	// ErrLessonNotFound возвращается, если занятие не найдено в хранилище.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInsufficientSpaces — бизнес-ошибка условного декремента: мест меньше,
	// чем запрошено, либо гонка за последние места проиграна.
	ErrInsufficientSpaces = errors.New("insufficient spaces")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки машинерии идемпотентности.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// InsufficientSpacesError несёт детали отказа по ёмкости: какое занятие,
// сколько доступно и сколько запрошено. Разворачивается в ErrInsufficientSpaces.
type InsufficientSpacesError struct {
	LessonID  string
	Topic     string
	Available int64
	Requested int64
}

func (e *InsufficientSpacesError) Error() string {
	topic := e.Topic
	if topic == "" {
		topic = e.LessonID
	}
	return fmt.Sprintf("insufficient spaces for lesson %s: available %d, requested %d",
		topic, e.Available, e.Requested)
}

func (e *InsufficientSpacesError) Unwrap() error {
	return ErrInsufficientSpaces
}

// IsNotFound проверяет, является ли ошибка отсутствием занятия или заказа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLessonNotFound) || errors.Is(err, ErrOrderNotFound)
}

// IsConflict проверяет, является ли ошибка отказом по ёмкости.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientSpaces)
}
