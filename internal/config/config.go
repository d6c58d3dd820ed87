package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Cache    CacheConfig    `yaml:"cache"`
	Engine   EngineConfig   `yaml:"engine"`
	Auth     AuthConfig     `yaml:"auth"`
	Access   AccessConfig   `yaml:"access"`
	Telegram TelegramConfig `yaml:"telegram"`
	Artifact ArtifactConfig `yaml:"artifact"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`

	// MaxInflight bounds concurrent synchronous download requests.
	MaxInflight int64 `yaml:"max_inflight" envconfig:"SERVER_MAX_INFLIGHT"`

	// RateLimit is requests per second per API client; zero disables.
	RateLimit float64 `yaml:"rate_limit" envconfig:"SERVER_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" envconfig:"SERVER_RATE_BURST"`
}

// StorageConfig holds database and scratch space configuration.
type StorageConfig struct {
	Driver      string `yaml:"driver" envconfig:"DB_DRIVER"`
	DSN         string `yaml:"dsn" envconfig:"DB_DSN"`
	TempPath    string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH"`
	MaxFileSize int64  `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count        int           `yaml:"count" envconfig:"WORKER_COUNT"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL"`
	QueueRetries int           `yaml:"queue_retries" envconfig:"WORKER_QUEUE_RETRIES"`
}

// CacheConfig selects and tunes the content cache backend.
type CacheConfig struct {
	Backend       string        `yaml:"backend" envconfig:"CACHE_BACKEND"`
	TTL           time.Duration `yaml:"ttl" envconfig:"CACHE_TTL"`
	EvictInterval time.Duration `yaml:"evict_interval" envconfig:"CACHE_EVICT_INTERVAL"`

	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB"`
}

// EngineConfig tunes engine invocation.
type EngineConfig struct {
	Retries       int           `yaml:"retries" envconfig:"ENGINE_RETRIES"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"ENGINE_RETRY_DELAY"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"ENGINE_MAX_RETRY_DELAY"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout" envconfig:"ENGINE_FETCH_TIMEOUT"`
	UserAgent     string        `yaml:"user_agent" envconfig:"ENGINE_USER_AGENT"`
	AudioFormat   string        `yaml:"audio_format" envconfig:"ENGINE_AUDIO_FORMAT"`
	POToken       string        `yaml:"po_token" envconfig:"YOUTUBE_PO_TOKEN"`
	EnableAria2   bool          `yaml:"enable_aria2" envconfig:"ENABLE_ARIA2"`
	YtdlpPath     string        `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
}

// AuthConfig lists credential sources for engines.
type AuthConfig struct {
	CookieFile          string   `yaml:"cookie_file" envconfig:"COOKIE_FILE"`
	YouTubeCookieFile   string   `yaml:"youtube_cookie_file" envconfig:"YOUTUBE_COOKIE_FILE"`
	InstagramCookieFile string   `yaml:"instagram_cookie_file" envconfig:"INSTAGRAM_COOKIE_FILE"`
	Browsers            []string `yaml:"browsers" envconfig:"COOKIE_BROWSERS"`
	CookiePassphrase    string   `yaml:"cookie_passphrase" envconfig:"COOKIE_PASSPHRASE"`
}

// AccessConfig controls the access gate.
type AccessConfig struct {
	Enabled  bool    `yaml:"enabled" envconfig:"ACCESS_ENABLED"`
	AdminIDs []int64 `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BotToken      string `yaml:"bot_token" envconfig:"BOT_TOKEN"`
	StorageChatID int64  `yaml:"storage_chat_id" envconfig:"STORAGE_CHAT_ID"`
	APIURL        string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
}

// ArtifactConfig selects where downloaded files are published.
type ArtifactConfig struct {
	Backend   string `yaml:"backend" envconfig:"ARTIFACT_BACKEND"`
	LocalPath string `yaml:"local_path" envconfig:"ARTIFACT_LOCAL_PATH"`

	S3Bucket   string `yaml:"s3_bucket" envconfig:"S3_BUCKET"`
	S3Region   string `yaml:"s3_region" envconfig:"S3_REGION"`
	S3Prefix   string `yaml:"s3_prefix" envconfig:"S3_PREFIX"`
	S3Endpoint string `yaml:"s3_endpoint" envconfig:"S3_ENDPOINT"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// Default returns the configuration used before the file and environment
// are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         9847,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 20 * time.Minute,
			MaxInflight:  16,
			RateLimit:    5,
			RateBurst:    10,
		},
		Storage: StorageConfig{
			Driver:      "sqlite",
			DSN:         "/data/uptovip.db",
			TempPath:    "/data/temp",
			MaxFileSize: 2000 << 20,
		},
		Worker: WorkerConfig{
			Count:        2,
			PollInterval: 5 * time.Second,
			QueueRetries: 3,
		},
		Cache: CacheConfig{
			Backend:       "sql",
			TTL:           720 * time.Hour,
			EvictInterval: time.Hour,
			RedisAddr:     "localhost:6379",
		},
		Engine: EngineConfig{
			Retries:       2,
			RetryDelay:    2 * time.Second,
			MaxRetryDelay: 30 * time.Second,
			FetchTimeout:  15 * time.Minute,
			AudioFormat:   "m4a",
		},
		Access: AccessConfig{
			Enabled: true,
		},
		Artifact: ArtifactConfig{
			Backend:   "telegram",
			LocalPath: "/data/artifacts",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional .env file, the YAML file and
// environment variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d is out of range", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}

	switch c.Cache.Backend {
	case "sql", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be sql, redis or memory, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.Engine.Retries < 0 {
		return fmt.Errorf("ENGINE_RETRIES must not be negative")
	}

	switch c.Artifact.Backend {
	case "telegram":
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("BOT_TOKEN is required for the telegram artifact backend")
		}
		if c.Telegram.StorageChatID == 0 {
			return fmt.Errorf("STORAGE_CHAT_ID is required for the telegram artifact backend")
		}
	case "s3":
		if c.Artifact.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 artifact backend")
		}
	case "local":
		if c.Artifact.LocalPath == "" {
			return fmt.Errorf("ARTIFACT_LOCAL_PATH is required for the local artifact backend")
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be telegram, s3 or local, got %q", c.Artifact.Backend)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PlatformCookieFiles maps per-platform cookie files by platform.
func (c AuthConfig) PlatformCookieFiles() map[domain.PlatformID]string {
	files := make(map[domain.PlatformID]string)
	if c.YouTubeCookieFile != "" {
		files[domain.PlatformYouTube] = c.YouTubeCookieFile
	}
	if c.InstagramCookieFile != "" {
		files[domain.PlatformInstagram] = c.InstagramCookieFile
	}
	return files
}

// ExternalDownloader returns the yt-dlp external downloader name, if any.
func (c EngineConfig) ExternalDownloader() string {
	if c.EnableAria2 {
		return "aria2c"
	}
	return ""
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", level)
	}
}
