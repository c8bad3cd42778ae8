// Package minio stores blobs as objects in a MinIO (or any S3 compatible)
// bucket using minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	mc "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rhuss/missive/pkg/blob"
	"github.com/rhuss/missive/pkg/debug"
)

// partSize is the multipart chunk used for uploads of unknown length.
const partSize = 5 << 20

// Config holds the MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store is a MinIO-backed blob.Store.
type Store struct {
	client *mc.Client
	bucket string
}

var _ blob.Store = (*Store)(nil)

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}

	client, err := mc.New(cfg.Endpoint, &mc.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, mc.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads the object, replacing any previous version.
func (s *Store) Put(ctx context.Context, namespace, id string, r io.Reader) (int64, error) {
	if err := blob.ValidateKey(namespace, id); err != nil {
		return 0, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, blob.ObjectName(namespace, id), r, -1, mc.PutObjectOptions{
		ContentType: "application/octet-stream",
		PartSize:    partSize,
	})
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}

	debug.Log("blob", "stored", "backend", "minio", "namespace", namespace, "id", id, "bytes", info.Size)
	return info.Size, nil
}

// Get opens the object. The object is stat'ed first so a missing key is
// reported here rather than on the first Read.
func (s *Store) Get(ctx context.Context, namespace, id string) (io.ReadCloser, error) {
	if err := blob.ValidateKey(namespace, id); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, blob.ObjectName(namespace, id), mc.GetObjectOptions{})
	if err != nil {
		return nil, translate(err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translate(err)
	}
	return obj, nil
}

// Delete removes the object.
func (s *Store) Delete(ctx context.Context, namespace, id string) error {
	if err := blob.ValidateKey(namespace, id); err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, blob.ObjectName(namespace, id), mc.RemoveObjectOptions{}); err != nil {
		if errors.Is(translate(err), blob.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func translate(err error) error {
	resp := mc.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return blob.ErrNotFound
	}
	return fmt.Errorf("get object: %w", err)
}
