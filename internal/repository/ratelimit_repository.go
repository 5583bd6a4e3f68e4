package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"threadline/internal/models"
)

// RateLimitRepository persists per-account publish counters in the same
// store as posts and accounts. Dispatch runs may overlap across process
// instances, so the row is only ever advanced through CompareAndSwap.
type RateLimitRepository interface {
	Get(ctx context.Context, accountID int64) (*models.RateLimit, error)
	Insert(ctx context.Context, rl *models.RateLimit) error
	CompareAndSwap(ctx context.Context, rl *models.RateLimit) (bool, error)
	AcquireAccountLock(ctx context.Context, accountID int64) (release func(), ok bool, err error)
}

type rateLimitRepository struct {
	db *sql.DB
}

func NewRateLimitRepository(db *sql.DB) RateLimitRepository {
	return &rateLimitRepository{db: db}
}

func (r *rateLimitRepository) Get(ctx context.Context, accountID int64) (*models.RateLimit, error) {
	query := `SELECT account_id, last_publish_at, hour_count, hour_window_reset_at, day_count, day_reset_at, version
		FROM account_rate_limits WHERE account_id = $1`
	row := r.db.QueryRowContext(ctx, query, accountID)

	var rl models.RateLimit
	err := row.Scan(&rl.AccountID, &rl.LastPublishAt, &rl.HourCount,
		&rl.HourWindowResetAt, &rl.DayCount, &rl.DayResetAt, &rl.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &rl, nil
}

func (r *rateLimitRepository) Insert(ctx context.Context, rl *models.RateLimit) error {
	query := `
		INSERT INTO account_rate_limits (account_id, last_publish_at, hour_count, hour_window_reset_at, day_count, day_reset_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, rl.AccountID, rl.LastPublishAt,
		rl.HourCount, rl.HourWindowResetAt, rl.DayCount, rl.DayResetAt, rl.Version)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// CompareAndSwap writes the row only if nobody advanced it since the caller
// read Version. Returns false when the row moved; the caller re-reads and
// retries.
func (r *rateLimitRepository) CompareAndSwap(ctx context.Context, rl *models.RateLimit) (bool, error) {
	query := `
		UPDATE account_rate_limits
		SET last_publish_at = $1,
			hour_count = $2,
			hour_window_reset_at = $3,
			day_count = $4,
			day_reset_at = $5,
			version = version + 1
		WHERE account_id = $6 AND version = $7
	`
	result, err := r.db.ExecContext(ctx, query, rl.LastPublishAt, rl.HourCount,
		rl.HourWindowResetAt, rl.DayCount, rl.DayResetAt, rl.AccountID, rl.Version)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	return affected == 1, nil
}

// AcquireAccountLock takes a session-scoped advisory lock on the account id,
// serializing the whole check-publish-record sequence against every other
// process instance. Returns ok=false without blocking when another dispatch
// holds the account; the post stays scheduled and the next tick retries.
func (r *rateLimitRepository) AcquireAccountLock(ctx context.Context, accountID int64) (release func(), ok bool, err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		slog.Info(err.Error())
		return nil, false, err
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, accountID).Scan(&acquired); err != nil {
		conn.Close()
		slog.Info(err.Error())
		return nil, false, err
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release = func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, accountID); err != nil {
			slog.Info(err.Error())
		}
		conn.Close()
	}
	return release, true, nil
}
