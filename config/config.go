package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/clubledger/objectgate/database"
	gatewayhttp "github.com/clubledger/objectgate/http"
	"github.com/clubledger/objectgate/keybackend"
	"github.com/clubledger/objectgate/s3store"
	"github.com/clubledger/objectgate/stowrystore"
	"github.com/clubledger/objectgate/tracing"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "OBJECTGATE"

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for objectgate.
type Config struct {
	Env      string                 `mapstructure:"env" yaml:"env"`
	Server   ServerConfig           `mapstructure:"server" yaml:"server"`
	Database database.Config        `mapstructure:"database" yaml:"database"`
	Storage  StorageConfig          `mapstructure:"storage" yaml:"storage"`
	Broker   BrokerConfig           `mapstructure:"broker" yaml:"broker"`
	S3       s3store.Config         `mapstructure:"s3" yaml:"s3"`
	Stowry   stowrystore.Config     `mapstructure:"stowry" yaml:"stowry"`
	Auth     AuthConfig             `mapstructure:"auth" yaml:"auth"`
	CORS     gatewayhttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Tracing  tracing.Options        `mapstructure:"tracing" yaml:"tracing"`
	Metrics  MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig              `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" yaml:"max_upload_size" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`
}

// StorageConfig describes where objects live.
type StorageConfig struct {
	// Driver selects the remote object store: none, s3 or stowry.
	Driver            string        `mapstructure:"driver" yaml:"driver" validate:"required,oneof=none s3 stowry"`
	PrivateObjectDir  string        `mapstructure:"private_object_dir" yaml:"private_object_dir" validate:"omitempty,startswith=/"`
	PublicSearchPaths []string      `mapstructure:"public_search_paths" yaml:"public_search_paths" validate:"dive,startswith=/"`
	UploadTTL         time.Duration `mapstructure:"upload_ttl" yaml:"upload_ttl" validate:"min=0"`
	CacheMaxAge       time.Duration `mapstructure:"cache_max_age" yaml:"cache_max_age" validate:"min=0"`
	// LocalDir holds local fallback uploads.
	LocalDir       string        `mapstructure:"local_dir" yaml:"local_dir" validate:"required"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" yaml:"cleanup_timeout" validate:"min=0"`
}

// BrokerConfig selects the credential broker.
type BrokerConfig struct {
	// Driver is none, sidecar, s3 or stowry. s3 and stowry reuse the
	// matching store settings.
	Driver   string        `mapstructure:"driver" yaml:"driver" validate:"required,oneof=none sidecar s3 stowry"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required_if=Driver sidecar"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
}

// AuthConfig holds bearer token verification settings. JWTSecret verifies
// tokens without a kid header; Keys verifies the rest.
type AuthConfig struct {
	JWTSecret string                `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Keys      keybackend.KeysConfig `mapstructure:"keys" yaml:"keys"`
	Issuer    string                `mapstructure:"issuer" yaml:"issuer"`
	Leeway    time.Duration         `mapstructure:"leeway" yaml:"leeway" validate:"min=0"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// ValidateServe checks the settings only the server needs. Commands that
// touch the database alone do not call it.
func (c *Config) ValidateServe() error {
	if c.Auth.JWTSecret == "" && c.Auth.Keys.IsZero() {
		return errors.New("auth.jwt_secret or auth.keys is required")
	}

	switch c.Storage.Driver {
	case "s3":
		if err := c.S3.Validate(); err != nil {
			return err
		}
	case "stowry":
		if c.Stowry.Endpoint == "" || c.Stowry.AccessKey == "" || c.Stowry.SecretKey == "" {
			return errors.New("stowry: endpoint, access_key and secret_key are required")
		}
	}

	if (c.Broker.Driver == "s3" || c.Broker.Driver == "stowry") && c.Broker.Driver != c.Storage.Driver {
		return fmt.Errorf("broker.driver %s requires storage.driver %s", c.Broker.Driver, c.Broker.Driver)
	}

	return nil
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":   "database.type",
	"db-dsn":    "database.dsn",
	"local-dir": "storage.local_dir",
	"port":      "server.port",
	"env":       "env",
	"log-level": "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default, even an empty one, for AutomaticEnv to reach it on
// Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.port", 5708)
	v.SetDefault("server.max_upload_size", 64<<20)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "objectgate.db")
	v.SetDefault("database.tables.local_uploads", "local_uploads")
	v.SetDefault("database.tables.object_metadata", "object_metadata")
	v.SetDefault("database.tables.profile_images", "profile_images")

	v.SetDefault("storage.driver", "none")
	v.SetDefault("storage.private_object_dir", "")
	v.SetDefault("storage.public_search_paths", []string{})
	v.SetDefault("storage.upload_ttl", "900s")
	v.SetDefault("storage.cache_max_age", "3600s")
	v.SetDefault("storage.local_dir", "./data/local-uploads")
	v.SetDefault("storage.cleanup_timeout", "30s")

	v.SetDefault("broker.driver", "none")
	v.SetDefault("broker.endpoint", "")
	v.SetDefault("broker.timeout", "10s")

	v.SetDefault("s3.region", s3store.DefaultRegion)
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.force_path_style", false)

	v.SetDefault("stowry.endpoint", "")
	v.SetDefault("stowry.access_key", "")
	v.SetDefault("stowry.secret_key", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.keys.file", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.leeway", "30s")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "POST", "PUT"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"ETag"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", "objectgate")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Database.Tables.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
