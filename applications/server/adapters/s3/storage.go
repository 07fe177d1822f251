package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/batchupload/applications/server/domain"
)

const (
	defaultConnAttempts = 10
	defaultConnTimeout  = time.Second
	defaultRegion       = "us-east-1"
)

// Storage keeps files as objects of one bucket in an S3 compatible service.
type Storage struct {
	connAttempts int
	connTimeout  time.Duration

	endpoint     string
	region       string
	accessKey    string
	secretKey    string
	bucket       string
	usePathStyle bool

	client *s3.Client
	log    log.Logger
}

// NewStorage connects to the endpoint and checks that bucket is reachable.
// Errors wrap domain.ErrStorageInit.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, logger log.Logger, opts ...Option) (*Storage, error) {
	s := &Storage{
		connAttempts: defaultConnAttempts,
		connTimeout:  defaultConnTimeout,
		region:       defaultRegion,
		endpoint:     endpoint,
		accessKey:    accessKey,
		secretKey:    secretKey,
		bucket:       bucket,
		usePathStyle: true,
		log:          logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	var err error
	for attempts := s.connAttempts; attempts > 0; attempts-- {
		if err = s.connect(ctx); err == nil {
			break
		}

		level.Warn(logger).Log("msg", "s3 is not reachable yet", "attempts_left", attempts-1, "err", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageInit, ctx.Err())
		case <-time.After(s.connTimeout):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageInit, err)
	}

	return s, nil
}

func (s *Storage) connect(ctx context.Context) error {
	cfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(s.region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.accessKey, s.secretKey, ""),
		),
	)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = s.usePathStyle
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
	})

	if _, err = s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}

	return nil
}

func (s *Storage) GetStorageURL() string {
	return fmt.Sprintf("s3://%s", s.bucket)
}

// WriteFile puts the object, overwriting an existing one with the same key.
func (s *Storage) WriteFile(ctx context.Context, key string, body io.Reader, size int64) (int64, error) {
	// PutObject needs the length up front
	if size < 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return 0, fmt.Errorf("can't read body: %w", err)
		}
		body, size = bytes.NewReader(data), int64(len(data))
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", key, err)
	}

	level.Debug(s.log).Log("msg", "object stored",
		"key", key,
		"bucket", s.bucket,
		"size", humanize.Bytes(uint64(size)),
	)

	return size, nil
}

func (s *Storage) ReadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}

	return out.Body, nil
}
