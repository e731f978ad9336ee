package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-service/internal/config"
	"pos-service/internal/domain"
	apperrors "pos-service/pkg/errors"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// metadataRefresher is the part of sarama.Client used to probe the brokers
type metadataRefresher interface {
	RefreshMetadata(topics ...string) error
}

// KafkaClient delivers records to the backend through Kafka topics
type KafkaClient struct {
	producer sarama.SyncProducer
	brokers  metadataRefresher
	logger   *zap.Logger
	config   *config.Config
	timeout  time.Duration
}

// NewKafkaClient creates a Kafka-backed remote client
func NewKafkaClient(cfg *config.Config, logger *zap.Logger) (*KafkaClient, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = cfg.KafkaClientID
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = cfg.KafkaRetries
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Parse acks
	switch cfg.KafkaAcks {
	case "0":
		saramaConfig.Producer.RequiredAcks = sarama.NoResponse
	case "1":
		saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	}
	if saramaConfig.Producer.RequiredAcks != sarama.WaitForAll {
		// the idempotent producer requires acks=all
		saramaConfig.Producer.Idempotent = false
	}

	client, err := sarama.NewClient(cfg.KafkaBrokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return NewKafkaClientWithProducer(producer, client, cfg, logger), nil
}

// NewKafkaClientWithProducer wires an existing producer; brokers may be nil
func NewKafkaClientWithProducer(producer sarama.SyncProducer, brokers metadataRefresher, cfg *config.Config, logger *zap.Logger) *KafkaClient {
	timeout := cfg.RemoteTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaClient{
		producer: producer,
		brokers:  brokers,
		logger:   logger,
		config:   cfg,
		timeout:  timeout,
	}
}

func (c *KafkaClient) UploadSale(ctx context.Context, sale *domain.Sale) (Result, error) {
	return c.send(ctx, domain.ActionUploadSale, sale.ID, sale)
}

func (c *KafkaClient) SyncCustomer(ctx context.Context, customer *domain.Customer) (Result, error) {
	return c.send(ctx, domain.ActionSyncCustomer, customer.ID, customer)
}

func (c *KafkaClient) SyncProduct(ctx context.Context, product *domain.Product) (Result, error) {
	return c.send(ctx, domain.ActionSyncProduct, product.ID, product)
}

func (c *KafkaClient) UploadReport(ctx context.Context, report *domain.DailyReport) (Result, error) {
	return c.send(ctx, domain.ActionUploadReport, "report-"+report.Date, report)
}

// Ping refreshes cluster metadata, which fails when no broker answers
func (c *KafkaClient) Ping(ctx context.Context) error {
	if c.brokers == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- c.brokers.RefreshMetadata() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the Kafka producer
func (c *KafkaClient) Close() error {
	if c.producer != nil {
		return c.producer.Close()
	}
	return nil
}

// send publishes one record. A timeout or broker error is retryable; an
// unencodable payload is not.
func (c *KafkaClient) send(ctx context.Context, kind domain.ActionKind, key string, record interface{}) (Result, error) {
	topic, err := c.topicFor(kind)
	if err != nil {
		return Result{}, apperrors.NewPermanentSync(string(kind), err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return Result{}, apperrors.NewPermanentSync(string(kind), fmt.Errorf("failed to marshal record: %w", err))
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event-type"),
				Value: []byte(kind),
			},
			{
				Key:   []byte("event-id"),
				Value: []byte(uuid.New().String()),
			},
			{
				Key:   []byte("timestamp"),
				Value: []byte(time.Now().UTC().Format(time.RFC3339)),
			},
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		partition, offset, err := c.producer.SendMessage(message)
		if err == nil {
			c.logger.Debug("Record published to Kafka",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Int64("offset", offset),
				zap.String("event-type", string(kind)),
			)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return Result{}, apperrors.NewRetryableSync(string(kind), err)
		}
		return Result{Success: true, ID: key}, nil
	case <-sendCtx.Done():
		return Result{}, apperrors.NewRetryableSync(string(kind), fmt.Errorf("timeout publishing to Kafka: %w", sendCtx.Err()))
	}
}

// topicFor maps an action kind to its Kafka topic
func (c *KafkaClient) topicFor(kind domain.ActionKind) (string, error) {
	switch kind {
	case domain.ActionUploadSale:
		return c.config.KafkaTopicSales, nil
	case domain.ActionSyncCustomer:
		return c.config.KafkaTopicCustomers, nil
	case domain.ActionSyncProduct:
		return c.config.KafkaTopicProducts, nil
	case domain.ActionUploadReport:
		return c.config.KafkaTopicReports, nil
	default:
		return "", fmt.Errorf("unknown action kind: %s", kind)
	}
}
