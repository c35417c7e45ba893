package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// LocalStore keeps objects as files under a root directory that the server
// also exposes at publicPath.
type LocalStore struct {
	root       string
	publicPath string
}

func NewLocalStore(root, publicPath string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &LocalStore{
		root:       root,
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

// Root is the directory the store writes to.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes to a temporary file next to the target and renames it into
// place, so readers never see a partial object.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, "create object dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write object")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close object")
	}
	return errors.Wrap(os.Rename(tmp.Name(), target), "move object into place")
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.WithStack(ErrNotFound)
		}
		return nil, nil, errors.WithStack(err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, errors.WithStack(err)
	}
	mtype, err := mimetype.DetectFile(target)
	if err != nil {
		f.Close()
		return nil, nil, errors.WithStack(err)
	}
	return f, &ObjectInfo{
		Size:        stat.Size(),
		ContentType: mtype.String(),
		ModTime:     stat.ModTime(),
	}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

func (s *LocalStore) URL(key string) string {
	return s.publicPath + "/" + strings.TrimPrefix(key, "/")
}

// ctxReader stops a copy once the request is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
