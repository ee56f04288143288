// Package writer archives executed hedges. Sinks run after the order is
// filled, so their failures are reported but never undo a run.
package writer

import (
	"context"
	"errors"

	"hedgeflow/config"
	"hedgeflow/logger"
	"hedgeflow/models"
)

// Sink stores one run record.
type Sink interface {
	Write(ctx context.Context, rec models.RunRecord) error
	Close() error
}

// MultiSink writes every record to all of its sinks.
type MultiSink struct {
	sinks []Sink
	log   *logger.Log
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, log: logger.GetLogger()}
}

// Len reports how many sinks are attached.
func (m *MultiSink) Len() int { return len(m.sinks) }

// Write tries every sink and joins their errors.
func (m *MultiSink) Write(ctx context.Context, rec models.RunRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the sinks enabled in cfg.
func FromConfig(ctx context.Context, cfg config.StorageConfig) (*MultiSink, error) {
	var sinks []Sink
	if cfg.S3.Enabled {
		s3w, err := NewS3Writer(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3w)
	}
	if cfg.Kafka.Enabled {
		kw, err := NewKafkaWriter(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kw)
	}
	m := NewMultiSink(sinks...)
	m.log.WithComponent("writer").WithFields(logger.Fields{
		"s3":    cfg.S3.Enabled,
		"kafka": cfg.Kafka.Enabled,
	}).Debug("outcome sinks configured")
	return m, nil
}
