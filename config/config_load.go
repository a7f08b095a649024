package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.toml
var defaultConfigToml []byte

// Env vars used to inject secrets the embedded default intentionally leaves
// blank. Keeping these out of config.toml means a checked-out repo never
// carries a real secret.
const (
	EnvJwtClientSecret = "VIETCMC_JWT_CLIENT_SECRET"
	EnvBrokerPassword  = "VIETCMC_BROKER_PASSWORD"
	EnvStorePath       = "VIETCMC_STORE_PATH"
)

// Load decodes the embedded default config, then overlays the TOML file at
// path (if non-empty) and finally environment-variable secrets, mirroring
// the teacher's Load(dbfile) layering: embedded defaults -> file -> env.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.Decode(string(defaultConfigToml), cfg); err != nil {
		return nil, fmt.Errorf("config: decode embedded default: %w", err)
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if secret := os.Getenv(EnvJwtClientSecret); secret != "" {
		cfg.Jwt.ClientSecret = []byte(secret)
	}
	if pass := os.Getenv(EnvBrokerPassword); pass != "" {
		cfg.Broker.Password = pass
	}
	if storePath := os.Getenv(EnvStorePath); storePath != "" {
		cfg.Store.Path = storePath
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
