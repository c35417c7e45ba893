package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps objects in a MinIO/S3 compatible bucket. Objects are
// expected to be publicly readable at endpoint/bucket/key.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	store, err := newMinioClient(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	exists, err := store.client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "check bucket")
	}
	if !exists {
		if err := store.client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "create bucket")
		}
	}
	return store, nil
}

func newMinioClient(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init minio client")
	}
	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	base := url.URL{Scheme: scheme, Host: opts.Endpoint, Path: "/" + opts.Bucket}
	return &MinioStore{client: client, bucket: opts.Bucket, baseURL: base.String()}, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return errors.Wrap(err, "put object")
}

func (m *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	stat, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil, errors.WithStack(ErrNotFound)
		}
		return nil, nil, errors.Wrap(err, "stat object")
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "get object")
	}
	return obj, &ObjectInfo{
		Size:        stat.Size,
		ContentType: stat.ContentType,
		ModTime:     stat.LastModified,
	}, nil
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return errors.Wrap(err, "delete object")
	}
	return nil
}

func (m *MinioStore) URL(key string) string {
	return m.baseURL + "/" + strings.TrimPrefix(key, "/")
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
