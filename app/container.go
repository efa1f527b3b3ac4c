package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/internal/db"
	"github.com/RezaEskandarii/userfire/internal/lock"
	"github.com/RezaEskandarii/userfire/internal/mail"
	"github.com/RezaEskandarii/userfire/internal/maintenance"
	"github.com/RezaEskandarii/userfire/internal/message_broaker"
	"github.com/RezaEskandarii/userfire/internal/processor"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/service"
	"github.com/RezaEskandarii/userfire/internal/storage"
	"github.com/RezaEskandarii/userfire/internal/store"
	"github.com/RezaEskandarii/userfire/internal/store/memory"
	"github.com/RezaEskandarii/userfire/internal/store/postgres"
	redisstore "github.com/RezaEskandarii/userfire/internal/store/redis"
	"github.com/RezaEskandarii/userfire/internal/worker"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"log/slog"
	"time"
)

// Container holds all application dependencies. Connections and services
// are created once and shared by the API and worker processes.
type Container struct {
	Config *config.Config
	Log    *slog.Logger

	DB    *sql.DB
	Bun   *bun.DB
	Redis redis.UniversalClient

	Queue         queue.Backend
	LockManager   lock.DistributedLockManager
	MessageBroker message_broaker.MessageBroker
	Migrator      *db.Migrator
	Maintenance   *maintenance.Scheduler

	UserStore  store.UserStore
	AuditStore store.AuditStore
	Users      *service.Users
	Processors *processor.Registry

	closers []func() error
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Pass WithDB, WithRedis or WithQueue to inject connections for testing.
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}

	c := &Container{Config: cfg, Log: log}
	if err := c.initDatabase(ctx, opt); err != nil {
		return nil, err
	}
	if err := c.initQueue(ctx, opt); err != nil {
		c.Close()
		return nil, err
	}

	c.LockManager = lock.NewPostgresDistributedLockManager(c.DB)
	c.Migrator = db.NewMigrator(c.DB, c.LockManager, log)
	c.Maintenance = maintenance.NewScheduler(c.Queue, cfg.Queue.Retention,
		maintenance.WithLocks(c.LockManager),
		maintenance.WithLogger(log))

	if cfg.RabbitMQ.Enabled() {
		broker, err := message_broaker.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		c.MessageBroker = broker
		c.closers = append(c.closers, broker.Close)
	}

	c.UserStore = postgres.NewPostgresUserStore(c.Bun)
	c.AuditStore = postgres.NewPostgresAuditStore(c.Bun)
	c.Users = service.NewUsers(c.UserStore, service.NewProducer(c.Queue, log))

	registry, err := c.newRegistry(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Processors = registry
	return c, nil
}

func (c *Container) initDatabase(ctx context.Context, opt *containerConfig) error {
	if opt.db != nil {
		c.DB = opt.db
		c.Bun = bun.NewDB(opt.db, pgdialect.New())
		return nil
	}
	conns, err := db.Open(ctx, c.Config.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	c.DB = conns.SQL
	c.Bun = conns.Bun
	c.closers = append(c.closers, conns.Close)
	return nil
}

func (c *Container) queueConfig() queue.Config {
	q := c.Config.Queue
	return queue.Config{
		RetryLimit:          q.RetryLimit,
		CategoryRetryLimits: q.CategoryRetryLimits(),
		BackoffBase:         q.BackoffBase,
		BackoffMax:          q.BackoffMax,
		LeaseTimeout:        q.LeaseTimeout,
		PollInterval:        q.PollInterval,
	}.WithDefaults()
}

func (c *Container) initQueue(ctx context.Context, opt *containerConfig) error {
	if opt.queue != nil {
		c.Queue = opt.queue
		return nil
	}

	qcfg := c.queueConfig()
	switch c.Config.Queue.Driver {
	case config.Memory:
		c.Queue = memory.NewQueue(qcfg)
	case config.Redis:
		client := opt.redis
		if client == nil {
			client = redis.NewClient(&redis.Options{
				Addr:     c.Config.Redis.Address,
				Password: c.Config.Redis.Password,
				DB:       c.Config.Redis.DB,
			})
			c.closers = append(c.closers, client.Close)
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := client.Ping(pingCtx).Err(); err != nil {
				return fmt.Errorf("init redis: %w", err)
			}
		}
		c.Redis = client
		c.Queue = redisstore.NewRedisJobQueue(client, qcfg)
	case config.Postgres:
		pgOpts := []postgres.Option{postgres.WithLogger(c.Log)}
		if opt.db == nil {
			notifier, err := postgres.NewListenerNotifier(c.Config.Database.DSN(), c.Log)
			if err != nil {
				c.Log.Warn("LISTEN unavailable, falling back to polling", logger.Error(err))
			} else {
				pgOpts = append(pgOpts, postgres.WithNotifier(notifier))
			}
		}
		c.Queue = postgres.NewPostgresJobQueue(c.DB, qcfg, pgOpts...)
	default:
		return fmt.Errorf("unsupported queue driver: %v", c.Config.Queue.Driver)
	}
	return nil
}

func (c *Container) newRegistry(ctx context.Context) (*processor.Registry, error) {
	var sender mail.Sender = mail.NewLogSender(c.Log)
	if mg := mail.NewMailgunSender(c.Config.Email, c.Log); mg != nil {
		sender = mg
	}

	var uploader processor.Uploader
	reports, err := storage.NewService(ctx, c.Config.Storage, c.Log)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	if reports != nil {
		uploader = reports
	}

	registry := processor.NewRegistry()
	err = errors.Join(
		registry.Register(types.CategoryEmail, processor.NewEmailProcessor(sender, mail.NewTemplates(), c.Log).Process),
		registry.Register(types.CategoryAudit, processor.NewAuditProcessor(c.AuditStore, c.Log).Process),
		registry.Register(types.CategoryReport, processor.NewReportProcessor(uploader, c.Log).Process),
	)
	if err != nil {
		return nil, err
	}
	return registry, nil
}

// NewWorker binds category to its registered processor.
func (c *Container) NewWorker(category types.Category, concurrency int) (*worker.Worker, error) {
	p, err := c.Processors.Get(category)
	if err != nil {
		return nil, err
	}
	opts := []worker.Option{
		worker.WithConcurrency(concurrency),
		worker.WithLogger(c.Log),
	}
	if c.MessageBroker != nil {
		opts = append(opts, worker.WithObserver(worker.BrokerObserver(c.MessageBroker, c.Log)))
	}
	return worker.New(c.Queue, category, p, opts...), nil
}

// Close releases everything the container opened, in reverse order.
func (c *Container) Close() error {
	var errs []error
	if c.Queue != nil {
		errs = append(errs, c.Queue.Close())
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
