package postgres_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/database"
	"github.com/clubledger/objectgate/database/postgres"
)

var (
	testPool     *pgxpool.Pool
	testPoolOnce sync.Once
	testDSN      string
)

// getSharedTestDatabase returns a shared database pool for all tests.
// Reusing one container keeps the suite fast.
func getSharedTestDatabase(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres test in short mode")
	}

	testPoolOnce.Do(func() {
		ctx := context.Background()

		pgContainer, err := pgcontainer.Run(ctx,
			"postgres:18-alpine",
			pgcontainer.WithDatabase("testdb"),
			pgcontainer.WithUsername("testuser"),
			pgcontainer.WithPassword("testpass"),
			pgcontainer.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}

		connectionStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			t.Fatalf("failed to get connection string: %v", err)
		}

		pool, err := pgxpool.New(ctx, connectionStr)
		if err != nil {
			_ = testcontainers.TerminateContainer(pgContainer)
			t.Fatalf("could not connect to database: %v", err)
		}

		testPool = pool
		testDSN = connectionStr
	})

	if testPool == nil {
		t.Fatal("postgres container unavailable")
	}

	return testPool
}

// getRandomString generates a random string for unique test identifiers.
func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

func randomTables(t *testing.T) objectgate.Tables {
	t.Helper()
	suffix := getRandomString(t)
	return objectgate.Tables{
		LocalUploads:   "local_uploads_" + suffix,
		ObjectMetadata: "object_metadata_" + suffix,
		ProfileImages:  "profile_images_" + suffix,
	}
}

// setupTestDB connects with unique table names, migrates, and drops the
// tables when the test ends.
func setupTestDB(t *testing.T) database.Database {
	t.Helper()

	pool := getSharedTestDatabase(t)
	ctx := context.Background()
	tables := randomTables(t)

	db, err := postgres.Connect(ctx, testDSN, tables)
	require.NoError(t, err, "failed to connect")

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	t.Cleanup(func() {
		_ = db.Close()
		_ = postgres.DropTables(ctx, pool, tables)
	})

	return db
}
