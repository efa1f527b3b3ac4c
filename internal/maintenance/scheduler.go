// Package maintenance runs periodic housekeeping over the job queues.
package maintenance

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/userfire/internal/constants"
	"github.com/RezaEskandarii/userfire/internal/lock"
	"github.com/RezaEskandarii/userfire/internal/metrics"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/robfig/cron/v3"
	"log/slog"
	"time"
)

const (
	DefaultRecoverySchedule  = "@every 30s"
	DefaultRetentionSchedule = "@every 1h"
	runTimeout               = time.Minute
)

type Scheduler struct {
	inspector queue.Inspector
	locks     lock.DistributedLockManager
	retention time.Duration

	recoverySchedule  string
	retentionSchedule string

	cron *cron.Cron
	log  *slog.Logger
	now  func() time.Time
}

type Option func(*Scheduler)

// WithLocks guards each run with an advisory lock so only one process
// performs a sweep at a time.
func WithLocks(locks lock.DistributedLockManager) Option {
	return func(s *Scheduler) {
		s.locks = locks
	}
}

func WithRecoverySchedule(spec string) Option {
	return func(s *Scheduler) {
		s.recoverySchedule = spec
	}
}

func WithRetentionSchedule(spec string) Option {
	return func(s *Scheduler) {
		s.retentionSchedule = spec
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScheduler purges completed envelopes older than retention. A zero
// retention disables purging.
func NewScheduler(inspector queue.Inspector, retention time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		inspector:         inspector,
		retention:         retention,
		recoverySchedule:  DefaultRecoverySchedule,
		retentionSchedule: DefaultRetentionSchedule,
		log:               logger.NewLogger(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Scope("maintenance"))
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return s
}

// Start registers the sweeps and starts the cron runner in its own goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.recoverySchedule, s.runRecovery); err != nil {
		return fmt.Errorf("schedule lease recovery: %w", err)
	}
	if s.retention > 0 {
		if _, err := s.cron.AddFunc(s.retentionSchedule, s.runRetention); err != nil {
			return fmt.Errorf("schedule retention: %w", err)
		}
	}
	s.cron.Start()
	s.log.Info("maintenance started",
		slog.String("recovery", s.recoverySchedule),
		slog.String("retention", s.retentionSchedule))
	return nil
}

// Stop waits for running sweeps or until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) runRecovery() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RecoverLeases(ctx); err != nil {
		s.log.Error("lease recovery failed", logger.Error(err))
	}
}

func (s *Scheduler) runRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.Purge(ctx); err != nil {
		s.log.Error("retention purge failed", logger.Error(err))
	}
}

// RecoverLeases returns expired in-flight envelopes to pending.
func (s *Scheduler) RecoverLeases(ctx context.Context) (int, error) {
	var n int
	err := s.guarded(ctx, constants.LeaseRecoveryLock, func() error {
		var err error
		n, err = s.inspector.RecoverExpiredLeases(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.LeasesRecovered.Add(float64(n))
		s.log.Info("recovered expired leases", slog.Int("count", n))
	}
	return n, nil
}

// Purge deletes completed envelopes older than the retention window.
func (s *Scheduler) Purge(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	var n int
	err := s.guarded(ctx, constants.RetentionLock, func() error {
		var err error
		n, err = s.inspector.PurgeCompleted(ctx, s.now().Add(-s.retention))
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.CompletedPurged.Add(float64(n))
		s.log.Info("purged completed envelopes", slog.Int("count", n))
	}
	return n, nil
}

// guarded runs fn while holding lockID. If another process holds the lock
// the run is skipped.
func (s *Scheduler) guarded(ctx context.Context, lockID int, fn func() error) error {
	if s.locks == nil {
		return fn()
	}
	ok, err := s.locks.TryAcquire(ctx, lockID)
	if err != nil {
		return fmt.Errorf("acquire lock %d: %w", lockID, err)
	}
	if !ok {
		s.log.Debug("sweep skipped, lock held elsewhere", slog.Int("lock", lockID))
		return nil
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), lockID); err != nil {
			s.log.Warn("release lock", slog.Int("lock", lockID), logger.Error(err))
		}
	}()
	return fn()
}
