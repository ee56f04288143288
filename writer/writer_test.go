package writer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	kafka "github.com/segmentio/kafka-go"

	"hedgeflow/config"
	"hedgeflow/logger"
	"hedgeflow/models"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

type fakeKafka struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

type failingSink struct{ err error }

func (s failingSink) Write(context.Context, models.RunRecord) error { return s.err }
func (s failingSink) Close() error { return nil }

func testRecord() models.RunRecord {
	return models.RunRecord{
		RunID:      "run-1",
		Asset:      "BTC",
		Outcome:    models.InsuranceOutcome{OrderID: "123", InstrumentName: "BTC-16OCT26-100000-P", StrikePrice: 100000, Quantity: 0.1, Premium: 0.0125},
		Payload:    `{"orderId":"123"}`,
		ExecutedAt: time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC),
	}
}

func TestS3WriterPutsRecord(t *testing.T) {
	fake := &fakeS3{}
	w := newS3Writer(fake, "bucket", "outcomes")

	if err := w.Write(context.Background(), testRecord()); err != nil {
		t.Fatal(err)
	}
	if *fake.input.Bucket != "bucket" || *fake.input.Key != "outcomes/2026-10-15/run-1.json" {
		t.Fatalf("unexpected destination %s/%s", *fake.input.Bucket, *fake.input.Key)
	}
	var got models.RunRecord
	if err := json.Unmarshal(fake.body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Outcome.OrderID != "123" || got.Payload != `{"orderId":"123"}` {
		t.Fatalf("unexpected body %s", fake.body)
	}
	if written, failed := w.Stats(); written != 1 || failed != 0 {
		t.Fatalf("unexpected stats %d/%d", written, failed)
	}
}

func TestS3WriterError(t *testing.T) {
	w := newS3Writer(&fakeS3{err: errors.New("denied")}, "bucket", "")
	if err := w.Write(context.Background(), testRecord()); err == nil {
		t.Fatal("expected error")
	}
	if _, failed := w.Stats(); failed != 1 {
		t.Fatalf("expected one failure, got %d", failed)
	}
}

func TestNewS3WriterRequiresBucket(t *testing.T) {
	if _, err := NewS3Writer(context.Background(), config.S3Config{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
}

func TestKafkaWriterKeysByOrderID(t *testing.T) {
	fake := &fakeKafka{}
	kw := &KafkaWriter{writer: fake, topic: "hedges", log: logger.GetLogger()}

	if err := kw.Write(context.Background(), testRecord()); err != nil {
		t.Fatal(err)
	}
	if len(fake.msgs) != 1 || string(fake.msgs[0].Key) != "123" {
		t.Fatalf("unexpected messages %+v", fake.msgs)
	}
	if err := kw.Close(); err != nil || !fake.closed {
		t.Fatal("writer not closed")
	}
}

func TestNewKafkaWriterValidation(t *testing.T) {
	if _, err := NewKafkaWriter(config.KafkaConfig{Topic: "t"}); err == nil {
		t.Fatal("expected error for missing brokers")
	}
	if _, err := NewKafkaWriter(config.KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	fake := &fakeS3{}
	boom := errors.New("boom")
	m := NewMultiSink(failingSink{err: boom}, newS3Writer(fake, "bucket", "p"))

	err := m.Write(context.Background(), testRecord())
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if fake.input == nil {
		t.Fatal("second sink skipped after first failed")
	}
}

func TestFromConfigDisabled(t *testing.T) {
	m, err := FromConfig(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected no sinks, got %d", m.Len())
	}
	if err := m.Write(context.Background(), testRecord()); err != nil {
		t.Fatal(err)
	}
}
