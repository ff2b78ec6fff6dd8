package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig holds the trading credential when an operator prefers a
// separate secrets file over environment variables. The credential is never
// logged and never persisted by the engine.
type SecretConfig struct {
	Gateway struct {
		Password string `yaml:"password"`
	} `yaml:"gateway"`
}

// LoadSecretConfig loads the credential from a separate yaml file.
// It returns an error if the file is missing (fail fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}
	if cfg.Gateway.Password == "" {
		return nil, fmt.Errorf("secret config %s carries no gateway password", path)
	}
	return &cfg, nil
}
