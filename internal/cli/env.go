package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/louyanyang/tensorrt-inference-server/internal/engine"
)

// EnvConfig holds flag defaults read from the environment. Flags given on
// the command line win.
type EnvConfig struct {
	Database string `env:"SEQUENCE_DB"`
	Format   string `env:"SEQUENCE_FORMAT"  envDefault:"text"`
	Verbose  bool   `env:"SEQUENCE_VERBOSE"`
	Device   int    `env:"SEQUENCE_DEVICE"  envDefault:"-1"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnv returns the environment configuration. On a parse error the
// defaults are returned together with the error.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := ParseEnv(&cfg); err != nil {
		return EnvConfig{Format: "text", Device: engine.NoGPU}, err
	}
	return cfg, nil
}
