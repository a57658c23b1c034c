// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/webhook-relay/config.toml",
	"configs/config.toml",
}

// Routes served by the relay besides the relay path itself.
const (
	HealthzPath = "/healthz"
	StatusPath  = "/relay/status"
)

const placeholderAPIKey = "YOUR_API_KEY_HERE"

func init() {
	// Report validation errors with TOML key names.
	validation.ErrorTag = "toml"
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config        string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host          string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port          int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	WebhookURL    string `kong:"name='webhook-url',help='Destination webhook URL (overrides config).',env='N8N_WEBHOOK_URL'"`
	APIKey        string `kong:"help='Bearer token sent to the webhook (overrides config).',env='N8N_API_KEY'"`
	AllowedOrigin string `kong:"help='Value of Access-Control-Allow-Origin (overrides config).',env='CORS_ALLOWED_ORIGIN'"`
	LogLevel      string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Webhook  WebhookConfig  `toml:"webhook"`
	CORS     CORSConfig     `toml:"cors"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path, empty when running without a file
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000)
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RelayPath    string          `toml:"relay_path"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// WebhookConfig describes the single forwarding destination.
// An empty URL is accepted; the relay then answers every request with 500.
type WebhookConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// CORSConfig holds the CORS response header values.
type CORSConfig struct {
	AllowedOrigin string `toml:"allowed_origin"`
	MaxAgeSeconds int    `toml:"max_age_seconds"`
}

// UpstreamConfig holds outbound connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/webhook-relay/config.toml then configs/config.toml, and falls back to
// flags and environment alone when neither exists.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Variables
// already set are left untouched and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.WebhookURL != "" {
		c.Webhook.URL = cli.WebhookURL
	}
	if cli.APIKey != "" {
		c.Webhook.APIKey = cli.APIKey
	}
	if cli.AllowedOrigin != "" {
		c.CORS.AllowedOrigin = cli.AllowedOrigin
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// setDefaults fills zero-valued fields. TOML cannot distinguish an explicit
// 0 from an omitted key, so zero always means "unset".
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Server.RelayPath == "" {
		c.Server.RelayPath = "/relay"
	}
	if c.CORS.AllowedOrigin == "" {
		c.CORS.AllowedOrigin = "*"
	}
	if c.CORS.MaxAgeSeconds == 0 {
		c.CORS.MaxAgeSeconds = 86400
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks field bounds and route collisions.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Server),
		validation.Field(&c.Webhook),
		validation.Field(&c.CORS),
		validation.Field(&c.Upstream),
		validation.Field(&c.Log),
		validation.Field(&c.Metrics),
	); err != nil {
		return err
	}
	return c.validateRoutes()
}

func (c Config) validateRoutes() error {
	reserved := []string{HealthzPath, StatusPath}
	for _, r := range reserved {
		if c.Server.RelayPath == r {
			return fmt.Errorf("server.relay_path %q conflicts with reserved route %q", c.Server.RelayPath, r)
		}
	}
	if !c.Metrics.Enabled {
		return nil
	}
	for _, r := range append(reserved, c.Server.RelayPath) {
		if c.Metrics.Path == r {
			return fmt.Errorf("metrics.path %q conflicts with reserved route %q", c.Metrics.Path, r)
		}
	}
	return nil
}

// Validate implements validation.Validatable.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&s.BodyMaxBytes, validation.Min(int64(0))),
		validation.Field(&s.RelayPath, validation.By(absolutePath)),
		validation.Field(&s.RateLimit),
	)
}

// Validate implements validation.Validatable.
func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RequestsPerSecond,
			validation.When(r.Enabled,
				validation.Required.Error("must be > 0 when rate limiting is enabled"),
				validation.Min(0.0).Exclusive().Error("must be > 0 when rate limiting is enabled"),
			),
		),
	)
}

// Validate implements validation.Validatable.
func (w WebhookConfig) Validate() error {
	return validation.ValidateStruct(&w,
		validation.Field(&w.URL, is.RequestURL, validation.By(httpScheme)),
		validation.Field(&w.APIKey,
			validation.NotIn(placeholderAPIKey).Error("contains placeholder value; set a real key or leave empty"),
		),
	)
}

// Validate implements validation.Validatable.
func (c CORSConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AllowedOrigin, validation.When(c.AllowedOrigin != "*", is.RequestURL)),
		validation.Field(&c.MaxAgeSeconds, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (u UpstreamConfig) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.TimeoutSeconds, validation.Min(0)),
		validation.Field(&u.IdleConnections, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "text")),
	)
}

// Validate implements validation.Validatable.
func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Path, validation.When(m.Enabled, validation.By(absolutePath))),
	)
}

func absolutePath(value any) error {
	p, _ := value.(string)
	if p == "" {
		return nil
	}
	if p[0] != '/' {
		return validation.NewError("validation_path_not_absolute", "must start with '/'")
	}
	return nil
}

func httpScheme(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_url_invalid", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_url_scheme", "must use http or https")
	}
	return nil
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or
// others. The file may hold the webhook bearer token.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
