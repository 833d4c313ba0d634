// Package database connects the gateway to its persistence backend.
//
// Two backends are supported and both hold the same three tables: local
// fallback upload rows, object metadata for stores that cannot keep custom
// metadata themselves, and the profile image references that finalize
// writes.
//
// # Supported Backends
//
//   - PostgreSQL: pgx connection pool, for shared deployments
//   - SQLite: modernc.org/sqlite, for development and single-node deployments
//
// # Usage
//
//	db, err := database.Connect(ctx, database.Config{
//	    Type: "sqlite",
//	    DSN:  "objectgate.db",
//	    Tables: objectgate.Tables{
//	        LocalUploads:   "local_uploads",
//	        ObjectMetadata: "object_metadata",
//	        ProfileImages:  "profile_images",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Connect only opens the backend. Migrate creates missing tables and
// Validate checks their columns.
package database
