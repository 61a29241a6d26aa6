// Package dbtest starts a throwaway PostgreSQL for integration tests.
package dbtest

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/emilythestrangee/threadvote/backend/internal/database"
)

var (
	once     sync.Once
	shared   *gorm.DB
	startErr error
)

// Open returns a migrated, empty database. The container is started once per
// test binary and reused; tables are truncated on every call. Tests are
// skipped when no container runtime is reachable.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		shared, startErr = start(context.Background())
	})
	if startErr != nil {
		t.Skipf("postgres container unavailable: %v", startErr)
	}

	err := shared.Exec("TRUNCATE votes, comments, posts, users RESTART IDENTITY CASCADE").Error
	if err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return shared
}

func start(ctx context.Context) (*gorm.DB, error) {
	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("threadvote"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
