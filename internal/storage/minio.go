package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
)

// MinIOStorage stores uploads in an S3-compatible bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
	prefix prefix
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg config.MinIOConfig, publicPrefix string) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket, prefix: newPrefix(publicPrefix)}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

func (s *MinIOStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", err
	}
	return s.prefix.path(key), nil
}

func (s *MinIOStorage) Open(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, Object{}, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, Object{}, s.mapErr(err)
	}
	// GetObject is lazy; Stat surfaces a missing key
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, Object{}, s.mapErr(err)
	}
	return obj, Object{ContentType: info.ContentType, Size: info.Size, ModTime: info.LastModified}, nil
}

func (s *MinIOStorage) Delete(ctx context.Context, publicPath string) error {
	key, err := s.prefix.key(publicPath)
	if err != nil {
		return err
	}
	// RemoveObject succeeds for missing keys
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinIOStorage) Exists(ctx context.Context, publicPath string) (bool, error) {
	key, err := s.prefix.key(publicPath)
	if err != nil {
		return false, nil
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if s.mapErr(err) == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping checks that the bucket is reachable.
func (s *MinIOStorage) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucket)
	}
	return nil
}

func (s *MinIOStorage) mapErr(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrNotFound
	}
	return err
}
