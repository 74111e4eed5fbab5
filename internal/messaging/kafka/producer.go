package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// DefaultClientID — client.id сервиса корзины в Kafka.
const DefaultClientID = "gomarketplace-cartd"

var errNoBrokers = errors.New("kafka brokers are not configured")

// ProducerOption настраивает Producer.
type ProducerOption func(*producerOptions)

type producerOptions struct {
	clientID    string
	compression sarama.CompressionCodec
	logger      *log.Entry
}

// WithClientID задаёт client.id.
func WithClientID(clientID string) ProducerOption {
	return func(o *producerOptions) {
		if clientID != "" {
			o.clientID = clientID
		}
	}
}

// WithCompression задаёт кодек сжатия сообщений.
func WithCompression(codec sarama.CompressionCodec) ProducerOption {
	return func(o *producerOptions) {
		o.compression = codec
	}
}

// WithProducerLogger задаёт logger.
func WithProducerLogger(logger *log.Entry) ProducerOption {
	return func(o *producerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildProducerOptions(options []ProducerOption) producerOptions {
	opts := producerOptions{
		clientID:    DefaultClientID,
		compression: sarama.CompressionSnappy,
		logger:      log.WithField("component", "kafka-producer"),
	}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

// newSaramaConfig собирает конфигурацию идемпотентного синхронного producer:
// каждое событие подтверждается всеми репликами до возврата из PublishEvent.
func newSaramaConfig(opts producerOptions) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = opts.clientID
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = opts.compression
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентного producer
	return config
}

// Producer синхронно отправляет JSON-события в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer подключается к brokers. Пустой список brokers — ошибка конфигурации.
func NewProducer(brokers []string, options ...ProducerOption) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errNoBrokers
	}

	opts := buildProducerOptions(options)
	producer, err := sarama.NewSyncProducer(brokers, newSaramaConfig(opts))
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{producer: producer, logger: opts.logger}, nil
}

func newProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{
		producer: producer,
		logger:   buildProducerOptions(nil).logger,
	}
}

// PublishEvent сериализует событие в JSON и синхронно отправляет его в topic.
// Заголовки добавляются в порядке имён.
func (p *Producer) PublishEvent(topic string, key string, event any, headers map[string]string) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(payload),
		Headers:   recordHeaders(headers),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	entry := p.logger.WithFields(log.Fields{
		"topic": topic,
		"key":   key,
	})
	if err != nil {
		entry.WithError(err).Error("failed to send cart event to kafka")
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	entry.WithFields(log.Fields{
		"partition": partition,
		"offset":    offset,
	}).Debug("cart event sent to kafka")
	return nil
}

func recordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]sarama.RecordHeader, 0, len(names))
	for _, name := range names {
		result = append(result, sarama.RecordHeader{
			Key:   []byte(name),
			Value: []byte(headers[name]),
		})
	}
	return result
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
