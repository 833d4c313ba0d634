package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clubledger/objectgate/config"
	"github.com/clubledger/objectgate/keybackend"
)

const redacted = "[redacted]"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration as YAML",
	Long: `Print the configuration after defaults, files, environment and flags
are merged. Secrets are redacted.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(redact(*cfg))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func redact(cfg config.Config) config.Config {
	for _, s := range []*string{&cfg.Auth.JWTSecret, &cfg.S3.SecretKey, &cfg.Stowry.SecretKey} {
		if *s != "" {
			*s = redacted
		}
	}
	inline := make([]keybackend.SigningKey, len(cfg.Auth.Keys.Inline))
	for i, k := range cfg.Auth.Keys.Inline {
		inline[i] = keybackend.SigningKey{ID: k.ID, Secret: redacted}
	}
	cfg.Auth.Keys.Inline = inline
	return cfg
}
