package writer

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	appconfig "hedgeflow/config"
	"hedgeflow/logger"
	"hedgeflow/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter publishes run records keyed by order id.
type KafkaWriter struct {
	writer messageWriter
	topic  string
	log    *logger.Log
}

func NewKafkaWriter(cfg appconfig.KafkaConfig) (*KafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	kw := &KafkaWriter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		topic: cfg.Topic,
		log:   logger.GetLogger(),
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka writer initialized")
	return kw, nil
}

func (kw *KafkaWriter) Write(ctx context.Context, rec models.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.Outcome.OrderID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "run_id", Value: []byte(rec.RunID)},
			{Key: "asset", Value: []byte(rec.Asset)},
		},
	}
	if err := kw.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", kw.topic, err)
	}
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"topic":    kw.topic,
		"order_id": rec.Outcome.OrderID,
	}).Debug("run record published")
	return nil
}

func (kw *KafkaWriter) Close() error {
	kw.log.WithComponent("kafka_writer").Debug("closing kafka writer")
	return kw.writer.Close()
}
