package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer ленты событий корзины, если заданы brokers.
// Без brokers возвращает nil, nil. Ошибка не фатальна: корзина работает и без ленты событий.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	brokers = normalizeBrokers(brokers)
	if len(brokers) == 0 {
		logger.Debug("kafka brokers are not configured, cart events are not published")
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers,
		kafka.WithClientID(kafka.DefaultClientID),
		kafka.WithProducerLogger(logger.WithField("layer", "kafka")),
	)
	if err != nil {
		logger.WithError(err).WithField("brokers", brokers).Warn("failed to create kafka producer, continuing without cart events")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer после остановки writer: последние события уже отправлены.
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
