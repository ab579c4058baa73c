package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const ndjsonContentType = "application/x-ndjson"

// S3Options locates the export bucket.
type S3Options struct {
	Bucket   string
	Prefix   string // key prefix, e.g. "max/exports"
	Region   string
	Endpoint string // non-empty for MinIO and similar; enables path-style addressing

	// History keeps a timestamped copy of every export next to latest.jsonl.
	History bool
}

// S3Destination writes JSONL exports to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	opts   S3Options
	now    func() time.Time
}

// NewS3Destination loads the default AWS credential chain and creates an
// S3 destination.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 destination: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3DestinationFromConfig(cfg, opts), nil
}

// NewS3DestinationFromConfig creates an S3 destination from an existing
// AWS config.
func NewS3DestinationFromConfig(cfg aws.Config, opts S3Options) *S3Destination {
	var s3opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		opts:   opts,
		now:    time.Now,
	}
}

// Keys returns the object keys a write at t produces.
func (d *S3Destination) Keys(t time.Time) []string {
	keys := []string{path.Join(d.opts.Prefix, "latest.jsonl")}
	if d.opts.History {
		keys = append(keys, path.Join(d.opts.Prefix, "history", t.UTC().Format("20060102T150405Z")+".jsonl"))
	}
	return keys
}

// Write uploads data to every key for the current time.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	for _, key := range d.Keys(d.now()) {
		_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(d.opts.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(ndjsonContentType),
		})
		if err != nil {
			return fmt.Errorf("s3 put object %s: %w", key, err)
		}
	}
	return nil
}
