// Package e2e drives a deployed relay from the outside. The suites skip
// themselves unless E2E_RELAY_ADDR is set.
package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayAddr string `envconfig:"E2E_RELAY_ADDR"`
	// E2E_HEALTH_ADDR enables the gRPC health step when set
	HealthAddr string `envconfig:"E2E_HEALTH_ADDR"`
	// E2E_INSECURE skips certificate verification, for self-signed relays
	Insecure bool   `envconfig:"E2E_INSECURE" default:"true"`
	Password string `envconfig:"E2E_PASSWORD" default:"e2e-password"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
