package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer публикует события сервиса бронирования в Kafka. Каждый вид
// события закреплён за своим топиком, ключ партиционирования — идентификатор
// агрегата: события одного заказа или занятия сохраняют порядок.
type Producer struct {
	producer    sarama.SyncProducer
	logger      *log.Entry
	orderTopic  string
	lessonTopic string
	dlqTopic    string
}

// ProducerOption настраивает Producer.
type ProducerOption func(*Producer)

// WithOrderTopic задаёт топик событий заказов.
func WithOrderTopic(topic string) ProducerOption {
	return func(p *Producer) {
		if topic != "" {
			p.orderTopic = topic
		}
	}
}

// WithLessonTopic задаёт топик событий каталога.
func WithLessonTopic(topic string) ProducerOption {
	return func(p *Producer) {
		if topic != "" {
			p.lessonTopic = topic
		}
	}
}

// WithDLQTopic задаёт топик недоставленных сообщений.
func WithDLQTopic(topic string) ProducerOption {
	return func(p *Producer) {
		if topic != "" {
			p.dlqTopic = topic
		}
	}
}

// NewProducer подключается к брокерам и возвращает producer с включённой
// идемпотентностью: retry на стороне брокера не дублирует подтверждение
// заказа в топике.
func NewProducer(brokers []string, opts ...ProducerOption) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентного producer

	syncProducer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect kafka brokers: %w", err)
	}

	p := &Producer{
		producer:    syncProducer,
		logger:      log.WithField("component", "kafka-producer"),
		orderTopic:  DefaultOrderTopic,
		lessonTopic: DefaultLessonTopic,
		dlqTopic:    DefaultDLQTopic,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PublishOrderEvent отправляет событие заказа, ключ — идентификатор заказа.
func (p *Producer) PublishOrderEvent(event OrderEvent) error {
	return p.send(p.orderTopic, event.OrderID, event)
}

// PublishLessonEvent отправляет событие занятия, ключ — идентификатор занятия.
func (p *Producer) PublishLessonEvent(event LessonEvent) error {
	return p.send(p.lessonTopic, event.LessonID, event)
}

// PublishDeadLetter отправляет payload в DLQ-топик без сериализации:
// содержимое уже сформировано отправителем.
func (p *Producer) PublishDeadLetter(key string, payload []byte) error {
	return p.sendRaw(p.dlqTopic, key, payload)
}

func (p *Producer) send(topic, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.sendRaw(topic, key, payload)
}

func (p *Producer) sendRaw(topic, key string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("event published")

	return nil
}

// Close закрывает соединение с брокерами.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
