package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/internal/queue"
	"github.com/RezaEskandarii/userfire/internal/state"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/google/uuid"
	"log/slog"
	"time"
)

// ChannelName is the LISTEN/NOTIFY channel used to wake dequeuers of category.
func ChannelName(category types.Category) string {
	return "userfire_jobs_" + string(category)
}

// PostgresJobQueue stores envelopes in job_envelopes and claims them
// with FOR UPDATE SKIP LOCKED so concurrent workers never share a lease.
type PostgresJobQueue struct {
	db       *sql.DB
	cfg      queue.Config
	notifier Notifier
	log      *slog.Logger
}

type Option func(*PostgresJobQueue)

// WithNotifier lets Dequeue sleep on LISTEN/NOTIFY instead of the poll interval alone.
func WithNotifier(n Notifier) Option {
	return func(q *PostgresJobQueue) {
		q.notifier = n
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(q *PostgresJobQueue) {
		q.log = log
	}
}

func NewPostgresJobQueue(db *sql.DB, cfg queue.Config, opts ...Option) *PostgresJobQueue {
	q := &PostgresJobQueue{
		db:  db,
		cfg: cfg.WithDefaults(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *PostgresJobQueue) Enqueue(ctx context.Context, category types.Category, name string, payload any) (string, error) {
	if err := queue.ValidateEnqueue(category, name); err != nil {
		return "", err
	}
	raw, err := queue.EncodePayload(payload)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	query := `
		WITH inserted AS (
			INSERT INTO job_envelopes (id, category, name, payload, state, attempt, enqueued_at, available_at)
			VALUES ($1, $2, $3, $4, $5, 0, now(), now())
			RETURNING id
		)
		SELECT pg_notify($6, id::text) FROM inserted
	`
	_, err = q.db.ExecContext(ctx, query,
		id,
		category,
		name,
		string(raw),
		state.StatusPending,
		ChannelName(category),
	)
	if err != nil {
		return "", queue.Unavailable("enqueue", err)
	}
	return id, nil
}

func (q *PostgresJobQueue) Dequeue(ctx context.Context, category types.Category) (*types.Envelope, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return nil, err
	}
	var wake <-chan struct{}
	if q.notifier != nil {
		wake = q.notifier.Subscribe(category)
	}

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env, err := q.claim(ctx, category)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, queue.Unavailable("dequeue", err)
		}
		if env != nil {
			return env, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}

// claim leases the oldest claimable envelope of category, or returns nil.
// An in-flight envelope whose lease expired is claimable again.
// Order is by seq among committed rows; seq is drawn at insert, so two
// overlapping enqueue transactions may become visible out of seq order.
func (q *PostgresJobQueue) claim(ctx context.Context, category types.Category) (*types.Envelope, error) {
	query := `
		WITH next AS (
			SELECT id FROM job_envelopes
			WHERE category = $1
			  AND (
			    (state IN ($2, $3) AND available_at <= now())
			    OR (state = $4 AND lease_expires_at <= now())
			  )
			ORDER BY seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE job_envelopes j
		SET state = $4,
		    attempt = j.attempt + 1,
		    lease_expires_at = now() + ($5 * interval '1 millisecond'),
		    updated_at = now()
		FROM next
		WHERE j.id = next.id
		RETURNING j.id, j.category, j.name, j.payload, j.state, j.attempt, j.enqueued_at, j.available_at, j.lease_expires_at, j.last_error, j.completed_at
	`
	row := q.db.QueryRowContext(ctx, query,
		category,
		state.StatusPending,
		state.StatusFailedRetryable,
		state.StatusInFlight,
		q.cfg.LeaseTimeout.Milliseconds(),
	)
	env, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (q *PostgresJobQueue) Ack(ctx context.Context, id string, attempt int) error {
	query := `
		UPDATE job_envelopes
		SET state = $1, completed_at = now(), lease_expires_at = NULL, updated_at = now()
		WHERE id = $2 AND state = $3 AND attempt = $4
	`
	result, err := q.db.ExecContext(ctx, query, state.StatusCompleted, id, state.StatusInFlight, attempt)
	if err != nil {
		return queue.Unavailable("ack", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return queue.Unavailable("ack", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Nothing changed: terminal, unknown, or the lease moved on.
	var (
		current        state.JobStatus
		currentAttempt int
	)
	err = q.db.QueryRowContext(ctx, `SELECT state, attempt FROM job_envelopes WHERE id = $1`, id).
		Scan(&current, &currentAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrJobNotFound
	}
	if err != nil {
		return queue.Unavailable("ack", err)
	}
	if current.IsTerminal() {
		return nil
	}
	if err := queue.CheckLease(current, currentAttempt, attempt); err != nil {
		return err
	}
	return queue.ErrLeaseLost
}

func (q *PostgresJobQueue) Nack(ctx context.Context, id string, lease int, cause error) (status state.JobStatus, err error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return "", queue.Unavailable("nack", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		category   types.Category
		name       string
		payload    []byte
		current    state.JobStatus
		attempt    int
		enqueuedAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		SELECT category, name, payload, state, attempt, enqueued_at
		FROM job_envelopes
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&category, &name, &payload, &current, &attempt, &enqueuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", queue.ErrJobNotFound
	}
	if err != nil {
		return "", queue.Unavailable("nack", err)
	}

	if current.IsTerminal() {
		if err = tx.Commit(); err != nil {
			return "", queue.Unavailable("nack", err)
		}
		return current, nil
	}
	if err = queue.CheckLease(current, attempt, lease); err != nil {
		return current, err
	}

	lastError := queue.TruncateError(cause)
	if q.cfg.Retryable(category, attempt) {
		status = state.StatusFailedRetryable
		_, err = tx.ExecContext(ctx, `
			UPDATE job_envelopes
			SET state = $1,
			    available_at = now() + ($2 * interval '1 millisecond'),
			    seq = nextval('job_envelopes_seq'),
			    lease_expires_at = NULL,
			    last_error = $3,
			    updated_at = now()
			WHERE id = $4
		`, status, q.cfg.Backoff(attempt).Milliseconds(), lastError, id)
		if err != nil {
			return "", queue.Unavailable("nack", err)
		}
	} else {
		status = state.StatusFailedTerminal
		_, err = tx.ExecContext(ctx, `
			UPDATE job_envelopes
			SET state = $1, lease_expires_at = NULL, last_error = $2, updated_at = now()
			WHERE id = $3
		`, status, lastError, id)
		if err != nil {
			return "", queue.Unavailable("nack", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO job_dead_letters (id, category, name, payload, attempts, last_error, enqueued_at, failed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (id) DO NOTHING
		`, id, category, name, string(payload), attempt, lastError, enqueuedAt)
		if err != nil {
			return "", queue.Unavailable("nack", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", queue.Unavailable("nack", err)
	}
	return status, nil
}

func (q *PostgresJobQueue) Stats(ctx context.Context, category types.Category) (types.QueueStats, error) {
	stats := types.QueueStats{Category: category}
	if err := queue.ValidateCategory(category); err != nil {
		return stats, err
	}
	query := `
		SELECT
			COUNT(*) FILTER (WHERE state = $2),
			COUNT(*) FILTER (WHERE state = $3),
			COUNT(*) FILTER (WHERE state = $4),
			COUNT(*) FILTER (WHERE state = $5),
			(SELECT COUNT(*) FROM job_dead_letters WHERE category = $1)
		FROM job_envelopes
		WHERE category = $1
	`
	err := q.db.QueryRowContext(ctx, query,
		category,
		state.StatusPending,
		state.StatusInFlight,
		state.StatusFailedRetryable,
		state.StatusCompleted,
	).Scan(&stats.Pending, &stats.InFlight, &stats.Retrying, &stats.Completed, &stats.Dead)
	if err != nil {
		return stats, queue.Unavailable("stats", err)
	}
	return stats, nil
}

func (q *PostgresJobQueue) DeadLetters(ctx context.Context, category types.Category, limit, offset int) ([]types.DeadLetter, int, error) {
	if err := queue.ValidateCategory(category); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_dead_letters WHERE category = $1`, category).Scan(&total)
	if err != nil {
		return nil, 0, queue.Unavailable("dead letters", err)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, category, name, payload, attempts, last_error, enqueued_at, failed_at
		FROM job_dead_letters
		WHERE category = $1
		ORDER BY failed_at ASC
		LIMIT $2 OFFSET $3
	`, category, limit, offset)
	if err != nil {
		return nil, 0, queue.Unavailable("dead letters", err)
	}
	defer rows.Close()

	letters := make([]types.DeadLetter, 0)
	for rows.Next() {
		var (
			dl        types.DeadLetter
			payload   []byte
			lastError sql.NullString
		)
		if err := rows.Scan(&dl.ID, &dl.Category, &dl.Name, &payload, &dl.Attempts, &lastError, &dl.EnqueuedAt, &dl.FailedAt); err != nil {
			return nil, 0, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.Payload = payload
		dl.LastError = lastError.String
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, queue.Unavailable("dead letters", err)
	}
	return letters, total, nil
}

func (q *PostgresJobQueue) RecoverExpiredLeases(ctx context.Context) (int, error) {
	result, err := q.db.ExecContext(ctx, `
		UPDATE job_envelopes
		SET state = $1, lease_expires_at = NULL, available_at = now(), updated_at = now()
		WHERE state = $2 AND lease_expires_at <= now()
	`, state.StatusPending, state.StatusInFlight)
	if err != nil {
		return 0, queue.Unavailable("recover leases", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 && q.notifier == nil {
		q.log.Debug("recovered expired leases without a notifier; waiters will pick them up on the next poll")
	}
	return int(n), nil
}

func (q *PostgresJobQueue) PurgeCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := q.db.ExecContext(ctx, `
		DELETE FROM job_envelopes
		WHERE state = $1 AND completed_at < $2
	`, state.StatusCompleted, olderThan)
	if err != nil {
		return 0, queue.Unavailable("purge", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Close releases the notifier. The *sql.DB is owned by the caller.
func (q *PostgresJobQueue) Close() error {
	if q.notifier != nil {
		return q.notifier.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row rowScanner) (*types.Envelope, error) {
	var (
		env       types.Envelope
		payload   []byte
		lease     sql.NullTime
		lastError sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(
		&env.ID,
		&env.Category,
		&env.Name,
		&payload,
		&env.Status,
		&env.Attempt,
		&env.EnqueuedAt,
		&env.AvailableAt,
		&lease,
		&lastError,
		&completed,
	)
	if err != nil {
		return nil, err
	}
	env.Payload = payload
	if lease.Valid {
		t := lease.Time
		env.LeaseExpiresAt = &t
	}
	if lastError.Valid {
		s := lastError.String
		env.LastError = &s
	}
	if completed.Valid {
		t := completed.Time
		env.CompletedAt = &t
	}
	return &env, nil
}

var _ queue.Backend = (*PostgresJobQueue)(nil)
