package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"dnakit/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Redis      RedisConfig      `yaml:"redis"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Database   DatabaseConfig   `yaml:"database"`
	Results    ResultsConfig    `yaml:"results"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
}

type UpstreamConfig struct {
	BaseURL             string        `yaml:"base_url"`
	Timeout             time.Duration `yaml:"timeout"`
	KitFetchConcurrency int           `yaml:"kit_fetch_concurrency"`
	LookupCacheTTL      time.Duration `yaml:"lookup_cache_ttl"`
}

type AuthConfig struct {
	// JWTSecret enables HS256 verification. Empty means tokens are decoded
	// without verification and the upstream backend enforces them.
	JWTSecret  string   `yaml:"jwt_secret"`
	UserClaim  string   `yaml:"user_claim"`
	RoleClaim  string   `yaml:"role_claim"`
	StaffRoles []string `yaml:"staff_roles"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SnapshotConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	Path   string       `yaml:"path"`
	Backup BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	StoragePath   string        `yaml:"storage_path"`
	RetentionDays int           `yaml:"retention_days"`
}

type ResultsConfig struct {
	URLTemplate string `yaml:"url_template"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream base_url is required")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream base_url %q is not an absolute URL", c.Upstream.BaseURL)
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if strings.TrimSpace(c.Auth.UserClaim) == "" {
		return errors.New("auth user_claim is required")
	}

	if c.Upstream.KitFetchConcurrency < 1 {
		return fmt.Errorf("upstream kit_fetch_concurrency must be positive, got %d", c.Upstream.KitFetchConcurrency)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "dnakit"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadHeaderTimeout == 0 {
		c.HTTP.ReadHeaderTimeout = 5 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 30 * time.Second
	}

	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = models.DefaultUpstreamBaseURL
	}
	c.Upstream.BaseURL = strings.TrimRight(c.Upstream.BaseURL, "/")
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = models.DefaultUpstreamTimeout
	}
	if c.Upstream.KitFetchConcurrency == 0 {
		c.Upstream.KitFetchConcurrency = models.DefaultKitFetchConcurrency
	}
	if c.Upstream.LookupCacheTTL == 0 {
		c.Upstream.LookupCacheTTL = models.DefaultLookupCacheTTL
	}

	if c.Auth.UserClaim == "" {
		c.Auth.UserClaim = models.DefaultUserClaim
	}
	if c.Auth.RoleClaim == "" {
		c.Auth.RoleClaim = models.DefaultRoleClaim
	}
	if len(c.Auth.StaffRoles) == 0 {
		c.Auth.StaffRoles = []string{"Staff", "Manager", "Admin"}
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = models.RateLimitRPS
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = models.RateLimitBurst
	}

	if c.Snapshot.TTL == 0 {
		c.Snapshot.TTL = models.DefaultSnapshotTTL
	}

	if c.Database.Backup.Interval == 0 {
		c.Database.Backup.Interval = 24 * time.Hour
	}
	if c.Database.Backup.StoragePath == "" {
		c.Database.Backup.StoragePath = "data/backups"
	}

	if c.Results.URLTemplate == "" {
		c.Results.URLTemplate = models.DefaultResultURLTemplate
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}
