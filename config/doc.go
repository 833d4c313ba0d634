// Package config loads and validates objectgate configuration.
//
// YAML files, environment variables and CLI flags are merged with viper and
// checked with go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (OBJECTGATE_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ctx = config.WithContext(ctx, cfg)
//
// # Environment Variables
//
// Keys map to environment variables with dots replaced by underscores:
//   - server.port → OBJECTGATE_SERVER_PORT
//   - storage.public_search_paths → OBJECTGATE_STORAGE_PUBLIC_SEARCH_PATHS (comma separated)
//   - auth.jwt_secret → OBJECTGATE_AUTH_JWT_SECRET
//
// # Validation
//
// Load validates what every command needs: ports, drivers, table names and
// absolute storage paths. Credentials for the remote store, the broker and
// the JWT secret are only checked by Config.ValidateServe, so migrate and
// reindex run without them.
package config
