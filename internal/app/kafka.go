package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/version"
)

// initKafkaProducer поднимает producer, если заданы брокеры.
// Ошибка подключения не фатальна: события и алерты отключаются, сервис работает дальше.
func initKafkaProducer(brokers []string, logger *log.Entry) *kafka.Producer {
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers, version.Service, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
