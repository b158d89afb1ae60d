package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"apimonitor/internal/utils"
)

// S3Writer handles writing batches of payload records to S3
type S3Writer struct {
	client   *s3.Client
	bucket   string
	prefix   string
	nodeName string
	logger   *utils.Logger
}

// NewS3Writer creates a new S3 writer
func NewS3Writer(ctx context.Context, bucket, region, prefix, nodeName string) (*S3Writer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Writer{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		prefix:   prefix,
		nodeName: nodeName,
		logger:   utils.NewLogger("s3-writer"),
	}, nil
}

// WriteBatch writes a batch of payload records to S3 as a JSON Lines
// file and returns the key it wrote.
func (w *S3Writer) WriteBatch(ctx context.Context, records []*PayloadRecord) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	// Key layout: <prefix>2025/11/30/<node>-20251130-143022-123456789.jsonl
	now := time.Now()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		w.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		w.nodeName,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			w.logger.Error("Failed to encode payload record", "error", err)
			continue
		}
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	w.logger.Info("Wrote payload batch to S3", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}
