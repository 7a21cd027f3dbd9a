// -------------------------------------------------------------------------------
// Configuration - Streamlo Service Settings
//
// Project: Streamlo
//
// Configuration types and loader for the web service. Supports environment
// variable expansion in YAML values using ${VAR} syntax. Validates required
// fields before returning to catch misconfiguration early.
// -------------------------------------------------------------------------------

package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// -------------------------------------------------------------------------
// CONFIGURATION TYPES
// -------------------------------------------------------------------------

// Config holds the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	BlobStore BlobStoreConfig `yaml:"blob_store"`
	Auth      AuthConfig      `yaml:"auth"`
	Assets    AssetsConfig    `yaml:"assets"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr    string        `yaml:"listen_addr"`
	MaxUploadSize int64         `yaml:"max_upload_size"` // Max multipart file size in bytes (default: 6MB)
	StoreTimeout  time.Duration `yaml:"store_timeout"`   // Per-operation timeout for store calls (default: 10s)
}

// DatabaseConfig holds MongoDB connection settings.
type DatabaseConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Database       string        `yaml:"database"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // Initial connect/ping timeout (default: 10s)
	MaxPoolSize    uint64        `yaml:"max_pool_size"`   // Driver connection pool size (default: 10)
}

// BlobStoreConfig holds configuration for the S3-compatible blob store. Audio
// and image blobs live in separate buckets, mirroring the two upload surfaces.
type BlobStoreConfig struct {
	Endpoint        string `yaml:"endpoint"`          // S3-compatible endpoint URL
	Region          string `yaml:"region"`            // AWS region or equivalent
	AccessKeyID     string `yaml:"access_key_id"`     // Access key ID
	SecretAccessKey string `yaml:"secret_access_key"` // Secret access key
	ForcePathStyle  bool   `yaml:"force_path_style"`  // Use path-style URLs
	AudioBucket     string `yaml:"audio_bucket"`      // Bucket for track audio binaries
	ImageBucket     string `yaml:"image_bucket"`      // Bucket for album art and profile images

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds settings for the blob-store circuit breaker.
// When the blob store becomes unreachable, uploads and streams fail fast
// until a probe succeeds. Disabled by default.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"` // Consecutive failures before opening (default: 3)
	OpenTimeout      time.Duration `yaml:"open_timeout"`      // Delay before probing recovery (default: 15s)
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"` // Session token lifetime (default: 24h)
}

// AssetsConfig holds static fallback asset locations.
type AssetsConfig struct {
	DefaultProfileImage string `yaml:"default_profile_image"` // Served when a user has no profile image blob
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sample_rate"`
	Insecure   bool    `yaml:"insecure"` // Use insecure connection (no TLS)
}

// RateLimitConfig holds per-client rate limiting settings. Reads and writes
// draw from separate buckets; a write runs a multi-step transaction plus blob
// traffic, so its budget is much smaller. Disabled by default.
type RateLimitConfig struct {
	Enabled             bool    `yaml:"enabled"`
	RequestsPerSec      float64 `yaml:"requests_per_sec"`       // Read token refill rate (default: 100)
	Burst               int     `yaml:"burst"`                  // Max read burst size (default: 200)
	WriteRequestsPerSec float64 `yaml:"write_requests_per_sec"` // Write token refill rate (default: 10)
	WriteBurst          int     `yaml:"write_burst"`            // Max write burst size (default: 20)
}

// -------------------------------------------------------------------------
// CONFIGURATION LOADER
// -------------------------------------------------------------------------

// LoadConfig reads and parses the configuration file with environment variable
// expansion. Returns an error if the file cannot be read, parsed, or validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// --- Expand environment variables ---
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.SetDefaultsAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// -------------------------------------------------------------------------
// VALIDATION
// -------------------------------------------------------------------------

// SetDefaultsAndValidate applies default values for optional fields and checks
// that all required configuration values are present.
func (c *Config) SetDefaultsAndValidate() error {
	var errors []string

	// --- Server validation ---
	if c.Server.ListenAddr == "" {
		errors = append(errors, "server.listen_addr is required")
	}
	if c.Server.MaxUploadSize == 0 {
		c.Server.MaxUploadSize = 6 * 1000 * 1000 // 6 MB, matches the upload form limit
	}
	if c.Server.StoreTimeout == 0 {
		c.Server.StoreTimeout = 10 * time.Second
	}

	// --- Database validation ---
	if c.Database.Host == "" {
		errors = append(errors, "database.host is required")
	}
	if c.Database.Database == "" {
		errors = append(errors, "database.database is required")
	}

	// --- Database defaults ---
	if c.Database.Port == 0 {
		c.Database.Port = 27017
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}
	if c.Database.MaxPoolSize == 0 {
		c.Database.MaxPoolSize = 10
	}

	// --- Blob store validation ---
	if c.BlobStore.Endpoint == "" {
		errors = append(errors, "blob_store.endpoint is required")
	}
	if c.BlobStore.AccessKeyID == "" {
		errors = append(errors, "blob_store.access_key_id is required")
	}
	if c.BlobStore.SecretAccessKey == "" {
		errors = append(errors, "blob_store.secret_access_key is required")
	}
	if c.BlobStore.AudioBucket == "" {
		errors = append(errors, "blob_store.audio_bucket is required")
	}
	if c.BlobStore.ImageBucket == "" {
		errors = append(errors, "blob_store.image_bucket is required")
	}

	// --- Circuit breaker defaults ---
	if c.BlobStore.CircuitBreaker.FailureThreshold == 0 {
		c.BlobStore.CircuitBreaker.FailureThreshold = 3
	}
	if c.BlobStore.CircuitBreaker.OpenTimeout == 0 {
		c.BlobStore.CircuitBreaker.OpenTimeout = 15 * time.Second
	}

	// --- Auth validation ---
	if c.Auth.JWTSecret == "" {
		errors = append(errors, "auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	// --- Assets defaults ---
	if c.Assets.DefaultProfileImage == "" {
		c.Assets.DefaultProfileImage = "public/defaultProfilePicture.png"
	}

	// --- Telemetry defaults ---
	if c.Telemetry.Metrics.Path == "" {
		c.Telemetry.Metrics.Path = "/metrics"
	}
	if c.Telemetry.Tracing.SampleRate == 0 && c.Telemetry.Tracing.Enabled {
		c.Telemetry.Tracing.SampleRate = 1.0
	}

	// --- Validate tracing config ---
	if c.Telemetry.Tracing.Enabled && c.Telemetry.Tracing.Endpoint == "" {
		errors = append(errors, "telemetry.tracing.endpoint is required when tracing is enabled")
	}

	// --- Rate limit defaults ---
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSec == 0 {
			c.RateLimit.RequestsPerSec = 100
		}
		if c.RateLimit.Burst == 0 {
			c.RateLimit.Burst = 200
		}
		if c.RateLimit.WriteRequestsPerSec == 0 {
			c.RateLimit.WriteRequestsPerSec = 10
		}
		if c.RateLimit.WriteBurst == 0 {
			c.RateLimit.WriteBurst = 20
		}
		if c.RateLimit.RequestsPerSec <= 0 {
			errors = append(errors, "rate_limit.requests_per_sec must be positive")
		}
		if c.RateLimit.Burst <= 0 {
			errors = append(errors, "rate_limit.burst must be positive")
		}
		if c.RateLimit.WriteRequestsPerSec <= 0 {
			errors = append(errors, "rate_limit.write_requests_per_sec must be positive")
		}
		if c.RateLimit.WriteBurst <= 0 {
			errors = append(errors, "rate_limit.write_burst must be positive")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

// ConnectionString returns a MongoDB connection URI with properly escaped
// credentials, safe for passwords containing special characters.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}
