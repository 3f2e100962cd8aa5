package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"gopkg.in/yaml.v3"
)

// Version is the version of the lottery tools, it's overridden at build time.
var Version = "dev"

// DefaultConfigPath is the default path to the config file.
const DefaultConfigPath = "./config/lottery.yml"

// Environment variables overriding the configuration file.
const (
	EnvRPCEndpoint    = "LOTTERY_RPC_ENDPOINT"
	EnvMnemonic       = "LOTTERY_MNEMONIC"
	EnvWalletPassword = "LOTTERY_WALLET_PASSWORD"
)

// Default values used for missing settings.
const (
	DefaultRPCTimeout = 10 * time.Second
	DefaultEntryFee   = 1_000_000
)

// Config is the top level configuration structure.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// Default returns the configuration used when there is no config file.
func Default() Config {
	return Config{
		ApplicationConfiguration: ApplicationConfiguration{
			LogLevel: "info",
			RPC: RPC{
				Timeout: DefaultRPCTimeout,
			},
			Contract: Contract{
				Name:      "lottery",
				Source:    "./contract",
				Config:    "./contract/lottery.yml",
				OutputDir: "./contract/out",
				EntryFee:  DefaultEntryFee,
			},
			History: dbconfig.DBConfiguration{
				Type: "inmemory",
			},
		},
	}
}

// Load reads the configuration file (if the path is not empty) and applies
// environment overrides on top of it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplicationConfiguration.applyEnv()
	if err := cfg.ApplicationConfiguration.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes the YAML file into cfg. Unknown fields are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return nil
}
