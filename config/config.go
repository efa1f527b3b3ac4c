package config

import (
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/custom_errors"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/caarlos0/env/v11"
	"time"
)

// Config holds all application configuration.
type Config struct {
	ServerPort      int           `env:"SERVER_PORT" envDefault:"1234"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`

	Database DatabaseConfig
	Queue    QueueConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Email    EmailConfig
	Storage  StorageConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"userfire"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"userfire"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

type QueueConfig struct {
	Driver       QueueDriver   `env:"QUEUE_DRIVER" envDefault:"postgres"`
	RetryLimit   int           `env:"QUEUE_RETRY_LIMIT" envDefault:"3"`
	BackoffBase  time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"1s"`
	BackoffMax   time.Duration `env:"QUEUE_BACKOFF_MAX" envDefault:"5m"`
	LeaseTimeout time.Duration `env:"QUEUE_LEASE_TIMEOUT" envDefault:"5m"`
	Retention    time.Duration `env:"QUEUE_RETENTION" envDefault:"168h"`
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`

	// Zero means the category uses RetryLimit.
	EmailRetryLimit  int `env:"QUEUE_RETRY_LIMIT_EMAIL" envDefault:"0"`
	AuditRetryLimit  int `env:"QUEUE_RETRY_LIMIT_AUDIT" envDefault:"0"`
	ReportRetryLimit int `env:"QUEUE_RETRY_LIMIT_REPORT" envDefault:"0"`
}

// CategoryRetryLimits returns only the overrides that were set.
func (q QueueConfig) CategoryRetryLimits() map[types.Category]int {
	limits := make(map[types.Category]int)
	for cat, n := range map[types.Category]int{
		types.CategoryEmail:  q.EmailRetryLimit,
		types.CategoryAudit:  q.AuditRetryLimit,
		types.CategoryReport: q.ReportRetryLimit,
	} {
		if n > 0 {
			limits[cat] = n
		}
	}
	return limits
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// RabbitMQConfig configures the outcome event publisher. An empty URL disables it.
type RabbitMQConfig struct {
	URL        string `env:"RABBITMQ_URL" envDefault:""`
	Exchange   string `env:"RABBITMQ_EXCHANGE" envDefault:"userfire.jobs"`
	Queue      string `env:"RABBITMQ_QUEUE" envDefault:"userfire.dead-letters"`
	RoutingKey string `env:"RABBITMQ_ROUTING_KEY" envDefault:"jobs.*.failed-terminal"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type EmailConfig struct {
	Enabled       bool   `env:"EMAIL_ENABLED" envDefault:"false"`
	MailgunDomain string `env:"MAILGUN_DOMAIN" envDefault:""`
	MailgunAPIKey string `env:"MAILGUN_API_KEY" envDefault:""`
	FromAddress   string `env:"EMAIL_FROM_ADDRESS" envDefault:"no-reply@userfire.local"`
	FromName      string `env:"EMAIL_FROM_NAME" envDefault:"Userfire"`
}

func (e EmailConfig) Configured() bool {
	return e.Enabled && e.MailgunDomain != "" && e.MailgunAPIKey != ""
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	Endpoint      string `env:"STORAGE_ENDPOINT" envDefault:""`
	AccessKey     string `env:"STORAGE_ACCESS_KEY" envDefault:""`
	SecretKey     string `env:"STORAGE_SECRET_KEY" envDefault:""`
	Region        string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	BucketReports string `env:"STORAGE_BUCKET_REPORTS" envDefault:"userfire-reports"`
}

func (s StorageConfig) Configured() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

type WorkerConfig struct {
	Concurrency int    `env:"WORKER_CONCURRENCY" envDefault:"1"`
	MetricsPort int    `env:"WORKER_METRICS_PORT" envDefault:"9090"`
	Instance    string `env:"WORKER_INSTANCE" envDefault:"userfire-worker"`
}

// Option adjusts a loaded Config.
type Option func(*Config) error

// Load parses the environment and applies opts on top.
// Every failing option is reported, not just the first.
func Load(opts ...Option) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	validationErrs := &custom_errors.ValidationError{}
	for _, opt := range opts {
		validationErrs.Add(opt(cfg))
	}
	validationErrs.Add(cfg.validate())
	if validationErrs.HasError() {
		return nil, validationErrs
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := ParseQueueDriver(string(c.Queue.Driver)); err != nil {
		return err
	}
	if c.Queue.RetryLimit < 1 {
		return errors.New("queue retry limit must be at least 1")
	}
	if c.Queue.BackoffBase <= 0 || c.Queue.BackoffMax < c.Queue.BackoffBase {
		return errors.New("queue backoff base must be positive and not exceed the cap")
	}
	if c.Queue.LeaseTimeout <= 0 {
		return errors.New("queue lease timeout must be positive")
	}
	if c.Worker.Concurrency < 1 {
		return errors.New("worker concurrency must be positive")
	}
	return nil
}

func WithQueueDriver(d QueueDriver) Option {
	return func(c *Config) error {
		if _, err := ParseQueueDriver(string(d)); err != nil {
			return err
		}
		c.Queue.Driver = d
		return nil
	}
}

func WithRetryLimit(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("retry limit must be at least 1")
		}
		c.Queue.RetryLimit = n
		return nil
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(c *Config) error {
		if base <= 0 || max < base {
			return fmt.Errorf("invalid backoff: base=%s max=%s", base, max)
		}
		c.Queue.BackoffBase = base
		c.Queue.BackoffMax = max
		return nil
	}
}

func WithLeaseTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("lease timeout must be positive")
		}
		c.Queue.LeaseTimeout = d
		return nil
	}
}

func WithConcurrency(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("worker count must be positive")
		}
		c.Worker.Concurrency = n
		return nil
	}
}
