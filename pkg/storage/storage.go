// Package storage keeps uploaded audiobook files, either on local disk or in
// an S3 compatible bucket.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/taletunes/taletunes/pkg/config"
)

var (
	// ErrNotFound is returned by Open when the key has no object.
	ErrNotFound = errors.New("storage object not found")
	// ErrInvalidKey is returned for keys that would escape the storage root.
	ErrInvalidKey = errors.New("invalid storage key")
)

type ObjectInfo struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store is the storage backend. Keys are slash separated relative paths such
// as "audiobooks/covers/<uuid>.jpg". Delete is idempotent.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the store selected by storage_driver.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverMinio:
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return NewLocalStore(cfg.StorageDir, cfg.StoragePublicPath)
	}
}

// NewKey returns a fresh key under prefix with the given file extension.
func NewKey(prefix, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	return path.Join(prefix, name)
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", errors.WithStack(ErrInvalidKey)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.WithStack(ErrInvalidKey)
	}
	return cleaned, nil
}
