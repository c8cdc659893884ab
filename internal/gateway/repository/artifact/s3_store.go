package artifact

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"deckshot/internal/gateway/entity"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL prefixes keys in returned references. Empty means
	// path-style URLs on Endpoint.
	PublicBaseURL string
	// CreateBucket makes the bucket on first use when it is missing.
	CreateBucket bool
}

// S3Store talks to any S3-compatible endpoint, including the GCS XML API
// with HMAC keys.
type S3Store struct {
	client        *minio.Client
	bucketName    string
	region        string
	publicBaseURL string
	createBucket  bool

	// bucketReady is set only after a successful check, so failed checks
	// are retried by the next Put.
	bucketMu    sync.Mutex
	bucketReady bool
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	base := strings.TrimSuffix(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + endpoint + "/" + bucket
	}

	return &S3Store{
		client:        client,
		bucketName:    bucket,
		region:        region,
		publicBaseURL: base,
		createBucket:  cfg.CreateBucket,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	if !s.createBucket {
		return nil
	}
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketReady {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.bucketReady = true
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, content []byte, contentType string) (entity.ArtifactReference, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	key = normalizeKey(key)
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", s.bucketName, key, err)
	}
	return s.reference(key), nil
}

func (s *S3Store) reference(key string) entity.ArtifactReference {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return entity.ArtifactReference(s.publicBaseURL + "/" + strings.Join(parts, "/"))
}
