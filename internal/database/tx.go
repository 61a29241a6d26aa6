package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
)

// ErrConflict is returned from inside a transaction when a conditional write
// found the row changed underneath it. The transaction is replayed.
var ErrConflict = errors.New("concurrent modification")

// Postgres SQLSTATE codes that mean "replay the whole transaction".
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Transactor runs units of work in a transaction and replays them a bounded
// number of times when they lose a race with another writer.
type Transactor struct {
	DB          *gorm.DB
	MaxAttempts int
	Log         *zap.Logger
	// Retries counts replays; nil disables counting.
	Retries prometheus.Counter
}

// Run executes fn inside a transaction. Any error rolls the transaction back.
// Retryable failures are replayed up to MaxAttempts times and then surface as
// apperr.ErrTransient.
func (t *Transactor) Run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.replay(ctx, func() error {
		return t.DB.WithContext(ctx).Transaction(fn)
	})
}

// replay calls attempt until it succeeds, fails with a non-retryable error,
// or MaxAttempts is used up.
func (t *Transactor) replay(ctx context.Context, attempt func() error) error {
	attempts := t.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = attempt()
		if err == nil || !IsRetryable(err) {
			return err
		}

		if n == attempts {
			break
		}
		if t.Retries != nil {
			t.Retries.Inc()
		}
		if t.Log != nil {
			t.Log.Debug("transaction conflict, replaying",
				zap.Int("attempt", n),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(backoff(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return apperr.Transient(err)
}

// IsRetryable reports whether err is a write conflict worth replaying.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
			return true
		}
	}
	return false
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt*attempt) * 5 * time.Millisecond
	if d > 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}
