package keybackend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SigningKey is one HS256 secret and the kid tokens name it by.
type SigningKey struct {
	ID     string `yaml:"kid" mapstructure:"kid"`
	Secret string `yaml:"secret" mapstructure:"secret"`
}

// LoadKeysFromFile loads signing keys from a YAML or JSON file holding a
// list of keys:
//
//	- kid: "2026-10"
//	  secret: "..."
//	- kid: "2026-04"
//	  secret: "..."
//
// Returns a map of kid to secret. Entries missing either field are skipped.
func LoadKeysFromFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var list []SigningKey
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}

	keys := make(map[string]string, len(list))
	for _, k := range list {
		if k.ID != "" && k.Secret != "" {
			keys[k.ID] = k.Secret
		}
	}

	return keys, nil
}
