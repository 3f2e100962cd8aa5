package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
)

// ApplicationConfiguration contains settings of the lottery tools.
type ApplicationConfiguration struct {
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`

	RPC        RPC                      `yaml:"RPC"`
	Wallet     Wallet                   `yaml:"Wallet"`
	Contract   Contract                 `yaml:"Contract"`
	History    dbconfig.DBConfiguration `yaml:"History"`
	Prometheus BasicService             `yaml:"Prometheus"`
}

// RPC describes the remote node to work with.
type RPC struct {
	Endpoint string        `yaml:"Endpoint"`
	Timeout  time.Duration `yaml:"Timeout"`
}

// Wallet describes where signing accounts come from. Either a NEP-6 wallet
// (Path) or a BIP-39 mnemonic can be used, the mnemonic is normally passed
// via the environment.
type Wallet struct {
	Path     string `yaml:"Path"`
	Password string `yaml:"Password"`
	Mnemonic string `yaml:"Mnemonic"`
	// Accounts is the number of accounts derived from the mnemonic.
	Accounts uint32 `yaml:"Accounts"`
}

// Contract describes the lottery contract sources, artifacts and deployment.
type Contract struct {
	Name      string `yaml:"Name"`
	Source    string `yaml:"Source"`
	Config    string `yaml:"Config"`
	OutputDir string `yaml:"OutputDir"`
	// Hash is the deployed contract (LE string or address), optional.
	Hash     string `yaml:"Hash"`
	EntryFee int64  `yaml:"EntryFee"`
}

func (a *ApplicationConfiguration) applyEnv() {
	if v, ok := os.LookupEnv(EnvRPCEndpoint); ok {
		a.RPC.Endpoint = v
	}
	if v, ok := os.LookupEnv(EnvMnemonic); ok {
		a.Wallet.Mnemonic = v
	}
	if v, ok := os.LookupEnv(EnvWalletPassword); ok {
		a.Wallet.Password = v
	}
}

// Validate checks the configuration for consistency.
func (a *ApplicationConfiguration) Validate() error {
	if a.RPC.Timeout < 0 {
		return fmt.Errorf("negative RPC timeout: %s", a.RPC.Timeout)
	}
	if a.Contract.EntryFee < 0 {
		return fmt.Errorf("negative entry fee: %d", a.Contract.EntryFee)
	}
	if a.Wallet.Path != "" && a.Wallet.Mnemonic != "" {
		return errors.New("both wallet path and mnemonic are set")
	}
	return nil
}
