package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clubledger/objectgate"
	"github.com/clubledger/objectgate/broker"
	"github.com/clubledger/objectgate/config"
	"github.com/clubledger/objectgate/database"
	"github.com/clubledger/objectgate/fallback"
	"github.com/clubledger/objectgate/filesystem"
	gatewayhttp "github.com/clubledger/objectgate/http"
	"github.com/clubledger/objectgate/keybackend"
	"github.com/clubledger/objectgate/metrics"
	"github.com/clubledger/objectgate/s3store"
	"github.com/clubledger/objectgate/stowrystore"
	"github.com/clubledger/objectgate/tracing"
)

// openDatabase connects and pings. Callers decide whether to migrate.
func openDatabase(ctx context.Context, cfg database.Config) (database.Database, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("connected to database", "type", cfg.Type)
	return db, nil
}

// openLocalDir opens the fallback directory as a sandboxed root, creating it
// when create is set.
func openLocalDir(dir string, create bool) (*os.Root, error) {
	if create {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create local upload directory: %w", err)
		}
	} else if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("local upload directory does not exist: %s", dir)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open local upload root: %w", err)
	}
	return root, nil
}

// newObjectStore builds the configured remote store. The S3 client is
// returned too so the s3 broker can share it.
func newObjectStore(ctx context.Context, cfg *config.Config, metadata objectgate.MetadataRepo) (objectgate.ObjectStore, *s3.Client, error) {
	switch cfg.Storage.Driver {
	case "s3":
		client, err := s3store.NewClient(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return s3store.New(client), client, nil
	case "stowry":
		store, err := stowrystore.New(cfg.Stowry, metadata)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return nil, nil, nil
	}
}

func newBroker(cfg *config.Config, client *s3.Client) (objectgate.CredentialBroker, error) {
	switch cfg.Broker.Driver {
	case "sidecar":
		timeout := cfg.Broker.Timeout
		if timeout <= 0 {
			timeout = broker.DefaultTimeout
		}
		sidecar, err := broker.NewSidecar(cfg.Broker.Endpoint, broker.WithHTTPClient(&http.Client{Timeout: timeout}))
		if err != nil {
			return nil, err
		}
		return sidecar, nil
	case "s3":
		if client == nil {
			return nil, fmt.Errorf("s3 broker: %w: storage.driver must be s3", objectgate.ErrConfigurationMissing)
		}
		return broker.NewS3Presigner(client), nil
	case "stowry":
		signer, err := broker.NewStowrySigner(cfg.Stowry.Endpoint, cfg.Stowry.AccessKey, cfg.Stowry.SecretKey)
		if err != nil {
			return nil, err
		}
		return signer, nil
	default:
		return nil, nil
	}
}

// app is everything serve needs, built from config.
type app struct {
	handler http.Handler
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config, autoMigrate bool) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if autoMigrate {
		if err = db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		slog.Info("database migration complete")
	}
	if err = db.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate database schema: %w", err)
	}

	root, err := openLocalDir(cfg.Storage.LocalDir, true)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, root.Close)

	local := fallback.NewService(db.LocalUploads(), filesystem.NewFileStorage(root), fallback.Config{
		CacheMaxAge:    cfg.Storage.CacheMaxAge,
		CleanupTimeout: cfg.Storage.CleanupTimeout,
	})

	store, s3Client, err := newObjectStore(ctx, cfg, db.ObjectMetadata())
	if err != nil {
		return nil, fmt.Errorf("create object store: %w", err)
	}
	brk, err := newBroker(cfg, s3Client)
	if err != nil {
		return nil, fmt.Errorf("create credential broker: %w", err)
	}

	var opts []objectgate.Option
	var middleware []func(http.Handler) http.Handler
	var metricsHandler http.Handler
	if cfg.Tracing.Enabled {
		middleware = append(middleware, tracing.Middleware)
	}
	if cfg.Metrics.Enabled {
		m := metrics.New()
		opts = append(opts, objectgate.WithRecorder(m))
		middleware = append(middleware, m.Middleware)
		metricsHandler = m.Handler()
	}

	gateway, err := objectgate.NewGateway(store, brk, local, objectgate.Config{
		PrivateObjectDir:  cfg.Storage.PrivateObjectDir,
		PublicSearchPaths: cfg.Storage.PublicSearchPaths,
		UploadTTL:         cfg.Storage.UploadTTL,
		CacheMaxAge:       cfg.Storage.CacheMaxAge,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	keys, err := keybackend.NewKeyStore(cfg.Auth.Keys)
	if err != nil {
		return nil, fmt.Errorf("load signing keys: %w", err)
	}

	handler := gatewayhttp.NewHandler(&gatewayhttp.HandlerConfig{
		Auth: gatewayhttp.AuthConfig{
			Secret: []byte(cfg.Auth.JWTSecret),
			Keys:   keys,
			Issuer: cfg.Auth.Issuer,
			Leeway: cfg.Auth.Leeway,
		},
		CORS:           cfg.CORS,
		MaxUploadBytes: cfg.Server.MaxUploadSize,
		Middleware:     middleware,
		Metrics:        metricsHandler,
		Health:         db,
	}, gateway, local, db.ProfileImages())

	slog.Info("gateway ready",
		"storage", cfg.Storage.Driver,
		"broker", cfg.Broker.Driver,
		"private_object_dir", cfg.Storage.PrivateObjectDir,
		"public_search_paths", cfg.Storage.PublicSearchPaths,
	)

	a.handler = handler.Router()
	return a, nil
}
