package config

import (
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

// DefaultFileName is the configuration document looked up in the content root.
const DefaultFileName = "pagebrew.yaml"

// Load opens the file-backed store at path after loading .env files.
func Load(path, contentRoot string) (*Store, error) {
	loadEnvFile()
	return Open(NewFilePersister(path), contentRoot)
}

// Parse decodes a configuration document, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").Fatal().Build()
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
