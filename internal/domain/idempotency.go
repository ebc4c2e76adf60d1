package domain

import "time"

// Сроки жизни записей идемпотентности. Запись в статусе processing живёт
// коротко: если обработчик упал между регистрацией ключа и сохранением
// ответа, клиент сможет повторить запрос после IdempotencyProcessingTTL,
// а не ждать истечения суточного срока. Завершённые записи хранятся
// IdempotencyCompletedTTL ради replay сохранённого ответа.
const (
	IdempotencyProcessingTTL = 5 * time.Minute
	IdempotencyCompletedTTL  = 24 * time.Hour
)

// IdempotencyStatus описывает жизненный цикл ключа идемпотентности.
type IdempotencyStatus string

const (
	// IdempotencyStatusProcessing — запрос принят и ещё обрабатывается.
	IdempotencyStatusProcessing IdempotencyStatus = "processing"
	// IdempotencyStatusDone — обработка завершена, ответ сохранён для повтора.
	IdempotencyStatusDone IdempotencyStatus = "done"
	// IdempotencyStatusFailed — обработка завершилась ошибкой.
	IdempotencyStatusFailed IdempotencyStatus = "failed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s IdempotencyStatus) Valid() bool {
	switch s {
	case IdempotencyStatusProcessing, IdempotencyStatusDone, IdempotencyStatusFailed:
		return true
	default:
		return false
	}
}

// IdempotencyRecord фиксирует обработку одного запроса с Idempotency-Key:
// хеш тела, сохранённый ответ и срок жизни записи.
type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseBody []byte
	HTTPStatus   int
	Status       IdempotencyStatus
	TTLAt        time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
