package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emilythestrangee/threadvote/backend/internal/apperr"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"conflict sentinel", fmt.Errorf("delete vote: %w", ErrConflict), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"serialization", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestBackoffIsCapped(t *testing.T) {
	assert.Less(t, backoff(1), backoff(2))
	assert.Equal(t, backoff(50), backoff(100))
}

func newTestTransactor(attempts int) (*Transactor, prometheus.Counter) {
	retries := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_tx_retries_total"})
	return &Transactor{MaxAttempts: attempts, Log: zap.NewNop(), Retries: retries}, retries
}

func TestReplayGivesUpAsTransient(t *testing.T) {
	tr, retries := newTestTransactor(4)

	calls := 0
	err := tr.replay(context.Background(), func() error {
		calls++
		return fmt.Errorf("switch vote: %w", ErrConflict)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 4, calls)
	assert.Equal(t, float64(3), testutil.ToFloat64(retries))
	assert.Equal(t, 503, apperr.Status(err))
}

func TestReplayRecoversAfterConflict(t *testing.T) {
	tr, retries := newTestTransactor(3)

	calls := 0
	err := tr.replay(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "23505"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, float64(1), testutil.ToFloat64(retries))
}

func TestReplayReturnsOtherErrorsUntouched(t *testing.T) {
	tr, retries := newTestTransactor(5)
	notFound := apperr.NotFound("Post", 9)

	calls := 0
	err := tr.replay(context.Background(), func() error {
		calls++
		return notFound
	})

	assert.Same(t, notFound, err)
	assert.NotErrorIs(t, err, apperr.ErrTransient)
	assert.Equal(t, 1, calls)
	assert.Zero(t, testutil.ToFloat64(retries))
}

func TestReplayZeroAttemptsStillRunsOnce(t *testing.T) {
	tr, _ := newTestTransactor(0)

	calls := 0
	err := tr.replay(context.Background(), func() error {
		calls++
		return ErrConflict
	})

	assert.ErrorIs(t, err, apperr.ErrTransient)
	assert.Equal(t, 1, calls)
}

func TestReplayStopsWhenContextEnds(t *testing.T) {
	tr, _ := newTestTransactor(100)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	start := time.Now()
	err := tr.replay(ctx, func() error {
		calls++
		cancel()
		return ErrConflict
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), backoff(1)*10)
}
