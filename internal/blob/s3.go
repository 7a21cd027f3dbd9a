// -------------------------------------------------------------------------------
// Blob Store - S3-Compatible Implementation
//
// Project: Streamlo
//
// Blob store implementation using AWS SDK v2. Connects to any S3-compatible
// endpoint (AWS, MinIO, B2) via custom endpoint configuration. Track audio and
// images go into separate buckets so retention and access policies can differ.
// -------------------------------------------------------------------------------

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/codes"

	"github.com/dunguyenn/StreamloWebservice/internal/config"
	"github.com/dunguyenn/StreamloWebservice/internal/telemetry"
)

// -------------------------------------------------------------------------
// S3 STORE IMPLEMENTATION
// -------------------------------------------------------------------------

// S3Store implements Store using AWS SDK v2.
type S3Store struct {
	client *s3.Client
}

// Compile-time interface check.
var _ Store = (*S3Store)(nil)

// NewS3Store creates a new S3-compatible blob store client. Uses BaseEndpoint
// to direct requests to the configured provider instead of AWS.
func NewS3Store(cfg config.BlobStoreConfig) *S3Store {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: cfg.ForcePathStyle,
	})

	return &S3Store{client: client}
}

// -------------------------------------------------------------------------
// OPERATIONS
// -------------------------------------------------------------------------

// Put uploads a blob to the given bucket.
func (s *S3Store) Put(ctx context.Context, bucket, id string, body io.Reader, size int64, contentType string) error {
	const operation = "PutObject"
	start := time.Now()

	// --- Start tracing span ---
	ctx, span := telemetry.StartSpan(ctx, "Blob "+operation,
		telemetry.BlobAttributes(operation, bucket, id)...,
	)
	defer span.End()

	// The AWS SDK requires a seekable body to compute the SigV4 payload hash.
	// Upload buffers arrive as plain readers, so buffer when necessary.
	var seekableBody io.ReadSeeker
	if rs, ok := body.(io.ReadSeeker); ok {
		seekableBody = rs
	} else {
		data, err := io.ReadAll(body)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to read body: %w", err)
		}
		seekableBody = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(id),
		Body:          seekableBody,
		ContentLength: aws.Int64(size),
	}

	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	_, err := s.client.PutObject(ctx, input)

	// --- Record metrics ---
	recordOperation(operation, bucket, start, err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("put object failed: %w", err)
	}
	return nil
}

// Open retrieves a blob read stream from the given bucket.
func (s *S3Store) Open(ctx context.Context, bucket, id string) (*Object, error) {
	const operation = "GetObject"
	start := time.Now()

	// --- Start tracing span ---
	ctx, span := telemetry.StartSpan(ctx, "Blob "+operation,
		telemetry.BlobAttributes(operation, bucket, id)...,
	)
	defer span.End()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(id),
	})

	// --- Record metrics ---
	recordOperation(operation, bucket, start, err)

	if err != nil {
		if isNotFound(err) {
			span.SetStatus(codes.Error, "not found")
			return nil, ErrNotFound
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("get object failed: %w", err)
	}

	out := &Object{Body: result.Body, ContentType: "application/octet-stream"}

	if result.ContentLength != nil {
		out.Size = *result.ContentLength
	}
	if result.ContentType != nil {
		out.ContentType = *result.ContentType
	}

	return out, nil
}

// Delete removes a blob from the given bucket. S3 DeleteObject succeeds for
// missing keys, which matches the interface contract.
func (s *S3Store) Delete(ctx context.Context, bucket, id string) error {
	const operation = "DeleteObject"
	start := time.Now()

	// --- Start tracing span ---
	ctx, span := telemetry.StartSpan(ctx, "Blob "+operation,
		telemetry.BlobAttributes(operation, bucket, id)...,
	)
	defer span.End()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(id),
	})

	// --- Record metrics ---
	recordOperation(operation, bucket, start, err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return fmt.Errorf("delete object failed: %w", err)
	}
	return nil
}

// -------------------------------------------------------------------------
// HELPERS
// -------------------------------------------------------------------------

// isNotFound reports whether an SDK error means the key does not exist.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// recordOperation updates Prometheus metrics for a blob store operation.
func recordOperation(operation, bucket string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	telemetry.BlobRequestsTotal.WithLabelValues(bucket, operation, status).Inc()
	telemetry.BlobDuration.WithLabelValues(bucket, operation).Observe(time.Since(start).Seconds())
}
