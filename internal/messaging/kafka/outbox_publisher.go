package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

// EventPublisher доставляет outbox-сообщения в Kafka, раскладывая их по
// топикам по типу агрегата. Payload сообщения — событие, сериализованное
// той же транзакцией, что и доменное изменение.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher создаёт паблишер для outbox-воркера.
func NewEventPublisher(producer *Producer) domain.OutboxPublisher {
	return &EventPublisher{producer: producer}
}

func (p *EventPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka event publisher is not initialized")
	}

	switch msg.AggregateType {
	case AggregateOrder:
		var event OrderEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return fmt.Errorf("decode order event %s: %w", msg.ID, err)
		}
		if event.OrderID == "" {
			event.OrderID = msg.AggregateID
		}
		return p.producer.PublishOrderEvent(event)
	case AggregateLesson:
		var event LessonEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return fmt.Errorf("decode lesson event %s: %w", msg.ID, err)
		}
		if event.LessonID == "" {
			event.LessonID = msg.AggregateID
		}
		return p.producer.PublishLessonEvent(event)
	default:
		return fmt.Errorf("unknown aggregate type %q in outbox message %s", msg.AggregateType, msg.ID)
	}
}

// DeadLetterPublisher отправляет недоставленные сообщения в DLQ-топик.
// Payload не разбирается: в DLQ уходит конверт, собранный воркером.
type DeadLetterPublisher struct {
	producer *Producer
}

// NewDeadLetterPublisher создаёт DLQ-паблишер для outbox-воркера.
func NewDeadLetterPublisher(producer *Producer) domain.OutboxPublisher {
	return &DeadLetterPublisher{producer: producer}
}

func (p *DeadLetterPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dead letter publisher is not initialized")
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.PublishDeadLetter(key, msg.Payload)
}

var _ domain.OutboxPublisher = (*EventPublisher)(nil)
var _ domain.OutboxPublisher = (*DeadLetterPublisher)(nil)
