package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taletunes/taletunes/internal/testgen"
	"github.com/taletunes/taletunes/pkg/config"
)

func TestNewKey(t *testing.T) {
	key := NewKey("audiobooks/covers", ".JPG")
	assert.True(t, strings.HasPrefix(key, "audiobooks/covers/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(key, "audiobooks/covers/"), ".jpg"), 36)

	assert.NotEqual(t, key, NewKey("audiobooks/covers", "jpg"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root, "/storage/")
	require.NoError(t, err)

	data := testgen.PNG(t, 4, 4)
	key := NewKey("audiobooks/covers", "png")

	t.Run("put then open", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/png"))

		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(key)))
		require.NoError(t, err)

		rc, info, err := store.Open(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		assert.Equal(t, int64(len(data)), info.Size)
		assert.Equal(t, "image/png", info.ContentType)
	})

	t.Run("url under public path", func(t *testing.T) {
		assert.Equal(t, "/storage/"+key, store.URL(key))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))
		require.NoError(t, store.Delete(ctx, key))

		_, _, err := store.Open(ctx, key)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("rejects keys escaping the root", func(t *testing.T) {
		for _, bad := range []string{"../etc/passwd", "/etc/passwd", "audiobooks/../../x", ""} {
			err := store.Put(ctx, bad, strings.NewReader("x"), 1, "text/plain")
			require.ErrorIs(t, err, ErrInvalidKey, bad)
		}
	})

	t.Run("cancelled context aborts the write", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		k := NewKey("audiobooks/audio", "mp3")
		err := store.Put(cctx, k, bytes.NewReader(testgen.MP3()), 0, "audio/mpeg")
		require.Error(t, err)
		_, _, err = store.Open(ctx, k)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMinioStoreURL(t *testing.T) {
	store, err := newMinioClient(MinioOptions{
		Endpoint:  "minio.local:9000",
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "taletunes",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio.local:9000/taletunes/audiobooks/audio/a.mp3", store.URL("audiobooks/audio/a.mp3"))

	store, err = newMinioClient(MinioOptions{Endpoint: "s3.example.com", Bucket: "b", UseSSL: true})
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com/b/k.jpg", store.URL("k.jpg"))
}

func TestNew_DefaultsToLocal(t *testing.T) {
	cfg := config.NewForTest()
	cfg.StorageDir = t.TempDir()

	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := store.(*LocalStore)
	assert.True(t, ok)
}
