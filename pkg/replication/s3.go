package replication

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var s3Tracer = otel.Tracer("roadpulse/replication/s3")

// S3Config configures the S3 archive backend. Endpoint and path style
// support MinIO for local development.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3Archive stores backup artifacts content-addressed in an S3 bucket.
type S3Archive struct {
	client *s3.Client
	bucket string
}

// NewS3Archive creates the archive client and ensures the bucket exists.
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		// Static credentials (MinIO or AWS with explicit keys).
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.).
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return &S3Archive{client: client, bucket: cfg.Bucket}, nil
}

func (a *S3Archive) Name() string { return "s3" }

// Upload writes the artifact under a content-addressed key and returns its
// hash. An artifact whose hash is already present is not re-uploaded.
func (a *S3Archive) Upload(ctx context.Context, data []byte) (UploadRef, error) {
	ctx, span := s3Tracer.Start(ctx, "S3Archive.Upload",
		trace.WithAttributes(
			attribute.String("s3.bucket", a.bucket),
			attribute.Int("content.size", len(data)),
		),
	)
	defer span.End()

	hash := sha256.Sum256(data)
	hashStr := hex.EncodeToString(hash[:])
	key := objectKey(hashStr)
	span.SetAttributes(
		attribute.String("content.hash", hashStr),
		attribute.String("s3.key", key),
	)

	exists, err := a.objectExists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check object existence")
		return UploadRef{}, err
	}
	span.SetAttributes(attribute.Bool("deduplication.hit", exists))

	if !exists {
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
			Metadata: map[string]string{
				"checksum-sha256": hashStr,
			},
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upload to s3")
			return UploadRef{}, fmt.Errorf("failed to upload to s3: %w", err)
		}
	}

	span.SetStatus(codes.Ok, "artifact uploaded")
	return UploadRef{
		ContentHash: hashStr,
		TxRef:       fmt.Sprintf("s3://%s/%s", a.bucket, key),
	}, nil
}

// Download fetches an artifact by its content hash.
func (a *S3Archive) Download(ctx context.Context, contentHash string) ([]byte, error) {
	ctx, span := s3Tracer.Start(ctx, "S3Archive.Download",
		trace.WithAttributes(
			attribute.String("s3.bucket", a.bucket),
			attribute.String("content.hash", contentHash),
		),
	)
	defer span.End()

	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(contentHash)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get object from s3")
		return nil, fmt.Errorf("failed to get object from s3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read object body")
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	span.SetStatus(codes.Ok, "artifact retrieved")
	return data, nil
}

// objectKey lays artifacts out content-addressed: backups/sha256/ab/cd123...
func objectKey(hash string) string {
	if len(hash) < 2 {
		return "backups/sha256/" + hash
	}
	return fmt.Sprintf("backups/sha256/%s/%s", hash[:2], hash[2:])
}

func (a *S3Archive) objectExists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil && !isBucketAlreadyExistsError(err) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey"))
}

func isBucketAlreadyExistsError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "BucketAlreadyExists") || strings.Contains(err.Error(), "BucketAlreadyOwnedByYou"))
}
