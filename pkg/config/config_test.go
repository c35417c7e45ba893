package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiredFieldMissing(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "DATABASE_FILE_PATH")
	assert.Contains(t, err.Error(), "database_file_path")
}

func TestNew_JWTSecretMissing(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET (jwt_secret)")
}

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabaseFilePath)
	assert.Equal(t, "test-secret-key", cfg.JWTSecret)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/taletunes.db
server_port: 8080
database_debug: true
jwt_secret: test-secret-from-file
storage_dir: /data/storage
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/taletunes.db", cfg.DatabaseFilePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, "/data/storage", cfg.StorageDir)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/from-file.db
server_port: 8080
jwt_secret: test-secret-from-file
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATABASE_FILE_PATH", "/data/from-env.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ORPHAN_SWEEP_INTERVAL", "30s")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/from-env.db", cfg.DatabaseFilePath)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.OrphanSweepInterval)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DatabaseConnectRetryCount)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectRetryDelay)
	assert.False(t, cfg.DatabaseDebug)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8484, cfg.ServerPort)
	assert.Equal(t, StorageDriverLocal, cfg.StorageDriver)
	assert.Equal(t, "/storage", cfg.StoragePublicPath)
	assert.Equal(t, RateLimitDriverMemory, cfg.RateLimitDriver)
	assert.Equal(t, 20, cfg.CodeLookupRatePerMinute)
	assert.Equal(t, 10*time.Minute, cfg.OrphanSweepInterval)
	assert.False(t, cfg.GoogleEnabled())
}

func TestNew_MinioRequiresEndpoint(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("STORAGE_DRIVER", "minio")
	t.Setenv("MINIO_ENDPOINT", "")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIO_ENDPOINT")
}

func TestNew_UnknownRateLimitDriver(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("RATE_LIMIT_DRIVER", "carrier-pigeon")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown rate limit driver "carrier-pigeon"`)
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, EnvironmentTest, cfg.Environment)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "database_file_path", toSnakeCase("DatabaseFilePath"))
	assert.Equal(t, "server_port", toSnakeCase("ServerPort"))
	assert.Equal(t, "jwt_secret", toSnakeCase("JWTSecret"))
	assert.Equal(t, "minio_use_ssl", toSnakeCase("MinioUseSSL"))
}
