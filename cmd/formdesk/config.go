package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/artpar/formdesk/internal/shell/api"
	"github.com/artpar/formdesk/internal/shell/api/middleware"
	"github.com/artpar/formdesk/internal/shell/uploads"
	"github.com/artpar/formdesk/internal/shell/workers"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Environment     string        `mapstructure:"environment"`
	// FrontendDir is a built builder UI served outside /api. Empty disables it.
	FrontendDir string `mapstructure:"frontend_dir"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Production reports whether the server runs in production mode.
func (c ServerConfig) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	// DSN selects PostgreSQL for postgres:// URLs and SQLite otherwise.
	DSN string `mapstructure:"dsn"`
}

// AuthConfig holds session token and password hashing settings.
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// CORSConfig holds the origins allowed to call the API with credentials.
type CORSConfig struct {
	FrontendOrigin        string   `mapstructure:"frontend_origin"`
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowedOriginSuffixes []string `mapstructure:"allowed_origin_suffixes"`
}

// UploadsConfig holds file upload storage settings.
type UploadsConfig struct {
	Backend     string   `mapstructure:"backend"`
	Dir         string   `mapstructure:"dir"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
	S3          S3Config `mapstructure:"s3"`
}

// S3Config holds the object storage settings for the s3 upload backend.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// RateLimitConfig limits public submissions per client.
type RateLimitConfig struct {
	SubmitPerMinute int `mapstructure:"submit_per_minute"`
	Burst           int `mapstructure:"burst"`
}

// WebhooksConfig holds webhook delivery settings.
type WebhooksConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BatchSize   int           `mapstructure:"batch_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	backendLocal = "local"
	backendS3    = "s3"

	devSecret = "dev"
)

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from defaults, an optional file, .env and
// the environment, in increasing order of precedence.
func LoadConfig(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.frontend_dir", "")
	v.SetDefault("database.dsn", "file:./data/formdesk.db")
	v.SetDefault("auth.jwt_secret", devSecret)
	v.SetDefault("auth.token_ttl", "168h")
	v.SetDefault("auth.cookie_name", "auth")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("cors.frontend_origin", "http://localhost:3000")
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allowed_origin_suffixes", []string{".vercel.app"})
	v.SetDefault("uploads.backend", backendLocal)
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.max_file_size", 10<<20)
	v.SetDefault("uploads.s3.bucket", "")
	v.SetDefault("uploads.s3.region", "us-east-1")
	v.SetDefault("uploads.s3.endpoint", "")
	v.SetDefault("uploads.s3.access_key_id", "")
	v.SetDefault("uploads.s3.secret_access_key", "")
	v.SetDefault("uploads.s3.public_base_url", "")
	v.SetDefault("uploads.s3.path_style", false)
	v.SetDefault("ratelimit.submit_per_minute", 10)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("webhooks.enabled", true)
	v.SetDefault("webhooks.interval", "15s")
	v.SetDefault("webhooks.timeout", "10s")
	v.SetDefault("webhooks.max_attempts", 5)
	v.SetDefault("webhooks.batch_size", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("formdesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/formdesk")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, a broken one is not
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("FORMDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv exports the variables in path unless they are already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost %d must be between 4 and 31", c.Auth.BcryptCost))
	}
	switch c.Uploads.Backend {
	case backendLocal:
	case backendS3:
		if c.Uploads.S3.Bucket == "" {
			errs = append(errs, errors.New("uploads.s3.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown uploads.backend %q", c.Uploads.Backend))
	}
	if c.Server.Production() && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == devSecret) {
		errs = append(errs, errors.New("auth.jwt_secret must be set in production"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// =============================================================================
// Derived Settings
// =============================================================================

// Cookie returns the session cookie settings for the environment. Production
// serves the builder from another site, so the cookie must be cross-site.
func (c *Config) Cookie() api.CookieConfig {
	if c.Server.Production() {
		return api.CookieConfig{Name: c.Auth.CookieName, Secure: true, SameSite: http.SameSiteNoneMode}
	}
	return api.CookieConfig{Name: c.Auth.CookieName, SameSite: http.SameSiteLaxMode}
}

// CORSPolicy returns the origin policy for the API.
func (c *Config) CORSPolicy() middleware.CORSConfig {
	return middleware.CORSConfig{
		FrontendOrigin:  c.CORS.FrontendOrigin,
		AllowedOrigins:  c.CORS.AllowedOrigins,
		AllowedSuffixes: c.CORS.AllowedOriginSuffixes,
	}
}

// S3 returns the object storage settings.
func (c *Config) S3() uploads.S3Config {
	return uploads.S3Config{
		Bucket:          c.Uploads.S3.Bucket,
		Region:          c.Uploads.S3.Region,
		Endpoint:        c.Uploads.S3.Endpoint,
		AccessKeyID:     c.Uploads.S3.AccessKeyID,
		SecretAccessKey: c.Uploads.S3.SecretAccessKey,
		PublicBaseURL:   c.Uploads.S3.PublicBaseURL,
		PathStyle:       c.Uploads.S3.PathStyle,
	}
}

// Dispatcher returns the webhook dispatcher settings.
func (c *Config) Dispatcher() workers.DispatcherConfig {
	return workers.DispatcherConfig{
		Interval:    c.Webhooks.Interval,
		Timeout:     c.Webhooks.Timeout,
		MaxAttempts: c.Webhooks.MaxAttempts,
		BatchSize:   c.Webhooks.BatchSize,
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format and
// installs it as the default.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
