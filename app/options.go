package app

import (
	"database/sql"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/redis/go-redis/v9"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	db    *sql.DB
	redis redis.UniversalClient
	queue queue.Backend
}

// WithDB injects a database handle instead of opening one from config.
// The container does not close injected handles.
func WithDB(db *sql.DB) ContainerOption {
	return func(c *containerConfig) {
		c.db = db
	}
}

// WithRedis injects a Redis client for the redis queue driver.
func WithRedis(client redis.UniversalClient) ContainerOption {
	return func(c *containerConfig) {
		c.redis = client
	}
}

// WithQueue replaces the configured queue backend.
func WithQueue(q queue.Backend) ContainerOption {
	return func(c *containerConfig) {
		c.queue = q
	}
}
