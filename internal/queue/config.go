package queue

import (
	"github.com/RezaEskandarii/userfire/internal/constants"
	"github.com/RezaEskandarii/userfire/types"
	"time"
)

const (
	DefaultRetryLimit   = constants.MaxRetryAttempt
	DefaultBackoffBase  = time.Second
	DefaultBackoffMax   = 5 * time.Minute
	DefaultLeaseTimeout = 5 * time.Minute
	DefaultPollInterval = time.Second

	// MaxErrorLength bounds the stored last_error text.
	MaxErrorLength = 500
)

type Config struct {
	RetryLimit          int
	CategoryRetryLimits map[types.Category]int
	BackoffBase         time.Duration
	BackoffMax          time.Duration
	LeaseTimeout        time.Duration
	PollInterval        time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryLimit:   DefaultRetryLimit,
		BackoffBase:  DefaultBackoffBase,
		BackoffMax:   DefaultBackoffMax,
		LeaseTimeout: DefaultLeaseTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// WithDefaults fills zero fields so backends never divide time by zero.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.RetryLimit < 1 {
		c.RetryLimit = d.RetryLimit
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = d.LeaseTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

func (c Config) RetryLimitFor(category types.Category) int {
	if n, ok := c.CategoryRetryLimits[category]; ok && n > 0 {
		return n
	}
	return c.RetryLimit
}

// Backoff returns min(base * 2^attempt, max).
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 32 {
		return c.BackoffMax
	}
	d := c.BackoffBase << uint(attempt)
	if d <= 0 || d > c.BackoffMax {
		return c.BackoffMax
	}
	return d
}

// Retryable reports whether a failure at attempt still leaves room for another delivery.
func (c Config) Retryable(category types.Category, attempt int) bool {
	return attempt < c.RetryLimitFor(category)
}
