package config

import (
	"io/fs"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentTest        = "test"
	EnvironmentProduction  = "production"

	StorageDriverLocal = "local"
	StorageDriverMinio = "minio"

	RateLimitDriverMemory = "memory"
	RateLimitDriverRedis  = "redis"
)

const defaultConfigFile = "/config/taletunes.yaml"

type Config struct {
	Environment string `koanf:"environment" default:"development"`

	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`

	ServerHost  string `koanf:"server_host" default:"0.0.0.0"`
	ServerPort  int    `koanf:"server_port" default:"8484"`
	FrontendURL string `koanf:"frontend_url" default:"http://localhost:5173"`
	JWTSecret   string `koanf:"jwt_secret" required:"true"`

	StorageDriver     string `koanf:"storage_driver" default:"local"`
	StorageDir        string `koanf:"storage_dir" default:"./tmp/storage"`
	StoragePublicPath string `koanf:"storage_public_path" default:"/storage"`
	MinioEndpoint     string `koanf:"minio_endpoint"`
	MinioAccessKey    string `koanf:"minio_access_key"`
	MinioSecretKey    string `koanf:"minio_secret_key"`
	MinioBucket       string `koanf:"minio_bucket" default:"taletunes"`
	MinioUseSSL       bool   `koanf:"minio_use_ssl"`

	GoogleClientID     string `koanf:"google_client_id"`
	GoogleClientSecret string `koanf:"google_client_secret"`
	GoogleRedirectURL  string `koanf:"google_redirect_url"`

	RateLimitDriver         string `koanf:"rate_limit_driver" default:"memory"`
	RedisAddr               string `koanf:"redis_addr"`
	RedisPassword           string `koanf:"redis_password"`
	CodeLookupRatePerMinute int    `koanf:"code_lookup_rate_per_minute" default:"20"`

	OrphanSweepInterval time.Duration `koanf:"orphan_sweep_interval" default:"10m"`
}

// New builds the configuration from defaults, an optional YAML file (path in
// CONFIG_FILE), and environment variables, in increasing precedence. A .env
// file in the working directory is loaded into the environment first.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	err := k.Load(env.Provider("", ".", strings.ToLower), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a configuration suitable for unit tests.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.Environment = EnvironmentTest
	cfg.DatabaseFilePath = ":memory:"
	cfg.JWTSecret = "test-secret"
	cfg.ServerHost = "127.0.0.1"
	cfg.DatabaseConnectRetryCount = 1
	cfg.DatabaseConnectRetryDelay = 0
	return cfg
}

func (cfg *Config) validate() error {
	missing := []string{}
	if cfg.DatabaseFilePath == "" {
		missing = append(missing, describeKey("DatabaseFilePath"))
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, describeKey("JWTSecret"))
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	switch cfg.StorageDriver {
	case StorageDriverLocal:
	case StorageDriverMinio:
		if cfg.MinioEndpoint == "" {
			return errors.Errorf("missing required config: %s", describeKey("MinioEndpoint"))
		}
	default:
		return errors.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	switch cfg.RateLimitDriver {
	case RateLimitDriverMemory:
	case RateLimitDriverRedis:
		if cfg.RedisAddr == "" {
			return errors.Errorf("missing required config: %s", describeKey("RedisAddr"))
		}
	default:
		return errors.Errorf("unknown rate limit driver %q", cfg.RateLimitDriver)
	}

	return nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (cfg *Config) GoogleEnabled() bool {
	return cfg.GoogleClientID != "" && cfg.GoogleClientSecret != ""
}

func describeKey(field string) string {
	key := toSnakeCase(field)
	return strings.ToUpper(key) + " (" + key + ")"
}

func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
