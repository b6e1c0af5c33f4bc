package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EmailProviderSendGrid = "sendgrid"
	EmailProviderLog      = "log"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Email      EmailConfig      `yaml:"email"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Resilience ResilienceConfig `yaml:"resilience"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" split_words:"true"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig contains the HTTP and gRPC listener settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port" split_words:"true"`
	GRPCPort        int           `yaml:"grpc_port" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode" split_words:"true"`
	MaxOpenConns int    `yaml:"max_open_conns" split_words:"true"`
}

// EmailConfig selects the delivery backend for notifications
type EmailConfig struct {
	Provider string `yaml:"provider"` // "sendgrid" or "log"
	APIKey   string `yaml:"api_key" split_words:"true"`
	From     string `yaml:"from"`
	FromName string `yaml:"from_name" split_words:"true"`
	// Host overrides the SendGrid API host, e.g. the EU region endpoint.
	Host string `yaml:"host"`
}

// JWTConfig contains the secret used to verify bearer tokens
type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	AccessTTL time.Duration `yaml:"access_ttl" split_words:"true"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

type ResilienceConfig struct {
	Notification NotificationResilienceConfig `yaml:"notification"`
}

// NotificationResilienceConfig tunes the timeout, retry and breaker stack
// wrapped around every outbound notification.
type NotificationResilienceConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" split_words:"true"`
	InitialDelay      time.Duration `yaml:"initial_delay" split_words:"true"`
	MaxDelay          time.Duration `yaml:"max_delay" split_words:"true"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" split_words:"true"`
	FailureThreshold  int           `yaml:"failure_threshold" split_words:"true"`
	ResetTimeout      time.Duration `yaml:"reset_timeout" split_words:"true"`
	MonitoringPeriod  time.Duration `yaml:"monitoring_period" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled                bool          `yaml:"enabled"`
	MaxRequests            int           `yaml:"max_requests" split_words:"true"`
	Window                 time.Duration `yaml:"window"`
	SweepInterval          time.Duration `yaml:"sweep_interval" split_words:"true"`
	SkipSuccessfulRequests bool          `yaml:"skip_successful_requests" split_words:"true"`
	SkipFailedRequests     bool          `yaml:"skip_failed_requests" split_words:"true"`
	TrustForwardedFor      bool          `yaml:"trust_forwarded_for" split_words:"true"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RetryWaitlistNotifications string `yaml:"retry_waitlist_notifications" split_words:"true"`
	SendOverdueReminders       string `yaml:"send_overdue_reminders" split_words:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file, applies environment overrides
// and defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// DATABASE_HOST, EMAIL_API_KEY, JWT_SECRET, LOG_LEVEL, RATE_LIMIT_MAX_REQUESTS, ...
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Email.Provider == "" {
		c.Email.Provider = EmailProviderLog
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Device Loans"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	n := &c.Resilience.Notification
	if n.Timeout == 0 {
		n.Timeout = 5 * time.Second
	}
	if n.MaxAttempts == 0 {
		n.MaxAttempts = 3
	}
	if n.InitialDelay == 0 {
		n.InitialDelay = time.Second
	}
	if n.MaxDelay == 0 {
		n.MaxDelay = 5 * time.Second
	}
	if n.BackoffMultiplier == 0 {
		n.BackoffMultiplier = 2
	}
	if n.FailureThreshold == 0 {
		n.FailureThreshold = 5
	}
	if n.ResetTimeout == 0 {
		n.ResetTimeout = 60 * time.Second
	}
	if n.MonitoringPeriod == 0 {
		n.MonitoringPeriod = 120 * time.Second
	}

	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = 100
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = 15 * time.Minute
	}
	if c.RateLimit.SweepInterval == 0 {
		c.RateLimit.SweepInterval = time.Minute
	}

	if c.Scheduler.RetryWaitlistNotifications == "" {
		c.Scheduler.RetryWaitlistNotifications = "0 */10 * * * *" // every 10 minutes
	}
	if c.Scheduler.SendOverdueReminders == "" {
		c.Scheduler.SendOverdueReminders = "0 0 8 * * *" // 8 AM UTC
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Email),
		validation.Field(&c.JWT),
		validation.Field(&c.Log),
		validation.Field(&c.Resilience),
		validation.Field(&c.RateLimit),
	)
}

func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.HTTPPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.GRPCPort, validation.Min(0), validation.Max(65535)),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Host, validation.Required),
		validation.Field(&d.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&d.User, validation.Required),
		validation.Field(&d.Database, validation.Required),
		validation.Field(&d.SSLMode, validation.In("disable", "require", "verify-ca", "verify-full")),
	)
}

func (e EmailConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Provider, validation.Required, validation.In(EmailProviderSendGrid, EmailProviderLog)),
		validation.Field(&e.APIKey, validation.When(e.Provider == EmailProviderSendGrid, validation.Required)),
		validation.Field(&e.From, validation.When(e.Provider == EmailProviderSendGrid, validation.Required)),
	)
}

func (j JWTConfig) Validate() error {
	return validation.ValidateStruct(&j,
		validation.Field(&j.Secret, validation.Required, validation.Length(32, 0)),
	)
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("json", "text")),
	)
}

func (r ResilienceConfig) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Notification))
}

func (n NotificationResilienceConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Timeout, validation.Min(time.Millisecond)),
		validation.Field(&n.MaxAttempts, validation.Min(1)),
		validation.Field(&n.BackoffMultiplier, validation.Min(1.0)),
		validation.Field(&n.MaxDelay, validation.Min(n.InitialDelay)),
		validation.Field(&n.FailureThreshold, validation.Min(1)),
		validation.Field(&n.ResetTimeout, validation.Min(time.Millisecond)),
	)
}

func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MaxRequests, validation.Min(1)),
		validation.Field(&r.Window, validation.Min(time.Second)),
		validation.Field(&r.SweepInterval, validation.Min(time.Second)),
	)
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetHTTPAddress returns the HTTP listen address
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// GetGRPCAddress returns the gRPC health listen address, or "" when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}
