package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "hedgeflow/config"
	"hedgeflow/logger"
	"hedgeflow/models"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer stores each run record as a JSON object under
// <prefix>/<yyyy-mm-dd>/<run_id>.json.
type S3Writer struct {
	client putObjectAPI
	bucket string
	prefix string
	log    *logger.Log

	objectsWritten int64
	errorsCount    int64
}

// NewS3Writer configures the AWS SDK from cfg. Static keys are used when
// present, otherwise the default credential chain applies.
func NewS3Writer(ctx context.Context, cfg appconfig.S3Config) (*S3Writer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket not configured")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	w := newS3Writer(client, cfg.Bucket, cfg.Prefix)
	w.log.WithComponent("s3_writer").WithFields(logger.Fields{
		"region": cfg.Region,
		"bucket": cfg.Bucket,
		"prefix": cfg.Prefix,
	}).Debug("s3 writer initialized")
	return w, nil
}

func newS3Writer(client putObjectAPI, bucket, prefix string) *S3Writer {
	return &S3Writer{client: client, bucket: bucket, prefix: prefix, log: logger.GetLogger()}
}

func (w *S3Writer) objectKey(rec models.RunRecord) string {
	return path.Join(w.prefix, rec.ExecutedAt.UTC().Format("2006-01-02"), rec.RunID+".json")
}

func (w *S3Writer) Write(ctx context.Context, rec models.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		atomic.AddInt64(&w.errorsCount, 1)
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	key := w.objectKey(rec)
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{"order-id": rec.Outcome.OrderID},
	})
	if err != nil {
		atomic.AddInt64(&w.errorsCount, 1)
		return fmt.Errorf("failed to put s3://%s/%s: %w", w.bucket, key, err)
	}

	atomic.AddInt64(&w.objectsWritten, 1)
	w.log.WithComponent("s3_writer").WithFields(logger.Fields{
		"bucket":   w.bucket,
		"key":      key,
		"bytes":    len(data),
		"order_id": rec.Outcome.OrderID,
	}).Debug("run record archived")
	return nil
}

// Stats returns the number of objects written and failed writes.
func (w *S3Writer) Stats() (written, failed int64) {
	return atomic.LoadInt64(&w.objectsWritten), atomic.LoadInt64(&w.errorsCount)
}

func (w *S3Writer) Close() error { return nil }
