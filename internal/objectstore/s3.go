package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"dubline/internal/config"
	"dubline/internal/services"
)

// S3 stores objects in an S3-compatible bucket.
type S3 struct {
	client     *minio.Client
	bucket     string
	region     string
	prefix     string
	publicBase string
}

var (
	_ Store       = (*S3)(nil)
	_ Provisioner = (*S3)(nil)
)

// NewS3 builds the client; it does not contact the service.
func NewS3(cfg config.Storage) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "endpoint and bucket are required", nil)
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "create s3 client", err)
	}
	return &S3{
		client:     client,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		prefix:     strings.Trim(cfg.KeyPrefix, "/"),
		publicBase: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
	}, nil
}

func (s *S3) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "put", "key required", nil)
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", classify("put", key, err)
	}
	if s.publicBase != "" {
		return s.publicBase + "/" + s.objectKey(key), nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.objectKey(key)), nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("get", key, err)
	}
	defer obj.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, classify("get", key, err)
	}
	return buf.Bytes(), nil
}

func (s *S3) PresignedGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, s.objectKey(key), ttl, url.Values{})
	if err != nil {
		return "", classify("presign", key, err)
	}
	return u.String(), nil
}

// KeyFor accepts s3://bucket/key URIs, public URLs under the configured
// base, and returns the key without the configured prefix.
func (s *S3) KeyFor(uri string) (string, bool) {
	var full string
	switch {
	case strings.HasPrefix(uri, "s3://"+s.bucket+"/"):
		full = strings.TrimPrefix(uri, "s3://"+s.bucket+"/")
	case s.publicBase != "" && strings.HasPrefix(uri, s.publicBase+"/"):
		full = strings.TrimPrefix(uri, s.publicBase+"/")
	default:
		return "", false
	}
	if s.prefix != "" {
		trimmed, ok := strings.CutPrefix(full, s.prefix+"/")
		if !ok {
			return "", false
		}
		full = trimmed
	}
	if full == "" {
		return "", false
	}
	return full, true
}

func (s *S3) HealthCheck(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return classify("health", s.bucket, err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "storage", "health", fmt.Sprintf("bucket %q does not exist", s.bucket), nil)
	}
	return nil
}

func (s *S3) EnsureBucket(ctx context.Context) (bool, error) {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return false, classify("ensure_bucket", s.bucket, err)
	}
	if ok {
		return false, nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "BucketAlreadyOwnedByYou" {
			return false, nil
		}
		return false, classify("ensure_bucket", s.bucket, err)
	}
	return true, nil
}

func classify(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == 404:
		return services.Wrap(services.ErrNotFound, "storage", op, fmt.Sprintf("object %q", key), err)
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return services.Wrap(services.ErrConfiguration, "storage", op, "credentials rejected", err)
	default:
		return services.Wrap(services.ErrTransport, "storage", op, fmt.Sprintf("object %q", key), err)
	}
}
