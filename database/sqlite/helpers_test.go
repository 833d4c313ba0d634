package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/database"
	"github.com/clubledger/objectgate/database/sqlite"
)

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

// setupTestDB creates a migrated in-memory database with unique table names.
func setupTestDB(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Connect(ctx, ":memory:", randomTables(t))
	require.NoError(t, err, "failed to connect")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx), "failed to migrate")

	return db
}
