package testutils

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/graffic/soup/internal/storage"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm/logger"
)

// DSNEnv names the variable pointing tests at an existing database
const DSNEnv = "TEST_DATABASE_DSN"

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// TestDB wraps a migrated database connection for testing
type TestDB struct {
	*storage.DB
}

// NewTestDB connects to the test database, applies migrations and truncates
// every table when the test finishes. The test is skipped when no database
// is reachable.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dsn, err := testDSN()
	if err != nil {
		t.Skipf("no test database available: %v", err)
	}

	db, err := storage.Open(dsn, logger.Silent)
	if err != nil {
		t.Skipf("failed to connect to test database: %v", err)
	}

	ctx := context.Background()
	if err := storage.Migrate(ctx, db.DB); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	tdb := &TestDB{DB: db}
	tdb.Truncate(t)

	t.Cleanup(func() {
		tdb.Truncate(t)
		db.Close()
	})

	return tdb
}

// Truncate empties every table and resets identity sequences
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()
	err := tdb.Exec("TRUNCATE TABLE votes, quote_messages, quotes, memberships, chats, users RESTART IDENTITY CASCADE").Error
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// testDSN returns the configured DSN or starts a shared Postgres container
func testDSN() (string, error) {
	if dsn := os.Getenv(DSNEnv); dsn != "" {
		return dsn, nil
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("soup_test"),
			postgres.WithUsername("soup"),
			postgres.WithPassword("soup"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})

	return containerDSN, containerErr
}
