package keybackend

// KeysConfig holds configuration for loading signing keys.
type KeysConfig struct {
	Inline []SigningKey `mapstructure:"inline" yaml:"inline"` // Inline keys from config
	File   string       `mapstructure:"file" yaml:"file"`     // Path to a YAML or JSON key list
}

// IsZero reports whether no key source is configured.
func (c KeysConfig) IsZero() bool {
	return len(c.Inline) == 0 && c.File == ""
}

// NewKeyStore creates a MapKeyStore from the given configuration.
// Keys from the file take precedence over inline keys with the same kid.
func NewKeyStore(cfg KeysConfig) (*MapKeyStore, error) {
	keys := make(map[string]string)

	for _, k := range cfg.Inline {
		if k.ID != "" && k.Secret != "" {
			keys[k.ID] = k.Secret
		}
	}

	if cfg.File != "" {
		fileKeys, err := LoadKeysFromFile(cfg.File)
		if err != nil {
			return nil, err
		}
		for k, v := range fileKeys {
			keys[k] = v
		}
	}

	return NewMapKeyStore(keys), nil
}
