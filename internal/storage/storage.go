package storage

import (
	"bytes"
	"context"
	"fmt"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"log/slog"
	"strings"
)

// objectPutter is the subset of *s3.Client used here.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Service writes report artifacts to an S3-compatible bucket.
type Service struct {
	client objectPutter
	bucket string
	log    *slog.Logger
}

type UploadResult struct {
	Key        string
	Bucket     string
	ETag       string
	Size       int64
	StorageURL string
}

// NewService returns nil when storage is not configured.
func NewService(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (*Service, error) {
	if !cfg.Configured() {
		return nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing keeps MinIO and other self-hosted endpoints working.
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	log.Info("storage service initialized",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.BucketReports),
	)
	return newService(client, cfg.BucketReports, log), nil
}

func newService(client objectPutter, bucket string, log *slog.Logger) *Service {
	return &Service{
		client: client,
		bucket: bucket,
		log:    log.With(logger.Scope("storage")),
	}
}

func (s *Service) Upload(ctx context.Context, key string, data []byte, contentType string) (*UploadResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	result, err := s.client.PutObject(ctx, input)
	if err != nil {
		s.log.Error("failed to upload object",
			slog.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	etag := ""
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, "\"")
	}
	return &UploadResult{
		Key:        key,
		Bucket:     s.bucket,
		ETag:       etag,
		Size:       int64(len(data)),
		StorageURL: fmt.Sprintf("s3://%s/%s", s.bucket, key),
	}, nil
}
