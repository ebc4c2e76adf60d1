package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/booking/internal/domain"
	"github.com/vladislavdragonenkov/booking/internal/messaging/kafka"
)

// initMessaging подключает Kafka и возвращает producer вместе с паблишерами
// для outbox-воркера: основной раскладывает события по топикам заказов и
// каталога, второй отправляет недоставленные сообщения в DLQ. Пустой список
// брокеров отключает публикацию: события копятся в outbox до следующего
// запуска с Kafka.
func initMessaging(cfg Config, logger *log.Entry) (*kafka.Producer, domain.OutboxPublisher, domain.OutboxPublisher) {
	if cfg.KafkaBrokers == "" {
		return nil, nil, nil
	}

	brokers := strings.Split(cfg.KafkaBrokers, ",")
	producer, err := kafka.NewProducer(brokers,
		kafka.WithOrderTopic(cfg.OrderTopic),
		kafka.WithLessonTopic(cfg.LessonTopic),
		kafka.WithDLQTopic(cfg.DLQTopic),
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, nil, nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, kafka.NewEventPublisher(producer), kafka.NewDeadLetterPublisher(producer)
}

// closeMessaging закрывает producer, если он был создан.
func closeMessaging(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
