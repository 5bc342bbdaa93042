package sync

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// putObjectAPI is the subset of *s3.Client used by S3Destination.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3Destination.
type S3Options struct {
	Bucket string
	// Key is the object key. A "{date}" placeholder expands to the UTC
	// export date, giving one object per day.
	Key    string
	Region string
	// Endpoint selects an S3-compatible service (MinIO etc.) with path-style
	// addressing.
	Endpoint string
}

// S3Destination uploads the readings export as a single object.
type S3Destination struct {
	client putObjectAPI
	bucket string
	key    string
	now    func() time.Time
}

func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: opts.Bucket, key: opts.Key, now: time.Now}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// objectKey expands the key template for an export made at t.
func (d *S3Destination) objectKey(t time.Time) string {
	return strings.ReplaceAll(d.key, "{date}", t.UTC().Format("2006-01-02"))
}

// Write uploads data, tagging the object with the export's reading count.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	key := d.objectKey(now())

	meta := map[string]string{"exporter": "motionrelay"}
	if h, ok := exportHeader(data); ok {
		meta["reading-count"] = strconv.Itoa(h.ReadingCount)
	}

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(d.bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentType:       aws.String("application/x-ndjson"),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata:          meta,
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", d.bucket, key, err)
	}
	return nil
}
