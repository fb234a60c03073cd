package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// TANDEM_ADDR is the base url of a running server, e.g. http://localhost:8080
	Addr string `envconfig:"TANDEM_ADDR"`
	// E2E_DEBUG_JSON allows dumping full response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
