/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/neo-lottery/cli/flags"
	"github.com/nspcc-dev/neo-lottery/cli/input"
	"github.com/nspcc-dev/neo-lottery/pkg/chain/rpcchain"
	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/nspcc-dev/neo-lottery/pkg/mnemonic"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the default timeout used for RPC requests.
const DefaultTimeout = config.DefaultRPCTimeout

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// Wallet is a set of flags used for wallet operations.
var Wallet = []cli.Flag{
	&cli.StringFlag{
		Name:    "wallet",
		Aliases: []string{"w"},
		Usage:   "Wallet to use to get the key for transaction signing; conflicts with --wallet-config flag",
	},
	&cli.StringFlag{
		Name:  "wallet-config",
		Usage: "Path to wallet config to use to get the key for transaction signing; conflicts with --wallet flag",
	},
}

// Address is a flag selecting the signing account of the wallet.
var Address = &flags.AddressFlag{
	Name:    "address",
	Aliases: []string{"a"},
	Usage:   "Address to use as transaction signee (and gas source)",
}

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	&cli.StringFlag{
		Name:    RPCEndpointFlag,
		Aliases: []string{"r"},
		Usage:   "RPC node address (overrides configuration)",
	},
	&cli.DurationFlag{
		Name:    "timeout",
		Aliases: []string{"s"},
		Usage:   "Timeout for the operation (overrides configuration)",
	},
}

// ConfigFile is a flag for commands that use the lottery configuration file.
var ConfigFile = &cli.StringFlag{
	Name:  "config-file",
	Usage: "Path to the configuration file",
	Value: config.DefaultConfigPath,
}

// Debug is a flag for commands that allow debug logging.
var Debug = &cli.BoolFlag{
	Name:    "debug",
	Aliases: []string{"d"},
	Usage:   "Enable debug logging (overrides configuration)",
}

var (
	errNoEndpoint             = errors.New("no RPC endpoint specified, use option '--" + RPCEndpointFlag + "' or '-r' or set it in the configuration")
	errNoWallet               = errors.New("no wallet parameter found, specify it with the '--wallet' or '-w' flag, the '--wallet-config' flag or use a mnemonic")
	errConflictingWalletFlags = errors.New("--wallet flag conflicts with --wallet-config flag, please, provide one of them to specify wallet location")
)

// GetConfigFromContext loads the configuration file given by the
// --config-file flag. A missing default file is not an error, defaults are
// used in this case.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	path := ctx.String(ConfigFile.Name)
	if !ctx.IsSet(ConfigFile.Name) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if ctx.IsSet(RPCEndpointFlag) {
		cfg.ApplicationConfiguration.RPC.Endpoint = ctx.String(RPCEndpointFlag)
	}
	if ctx.IsSet("timeout") {
		cfg.ApplicationConfiguration.RPC.Timeout = ctx.Duration("timeout")
	}
	return cfg, nil
}

// GetTimeoutContext returns a context.Context with the configured timeout.
func GetTimeoutContext(cfg config.RPC) (context.Context, func()) {
	dur := cfg.Timeout
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil
	cc.OutputPaths = []string{"stderr"}

	if logPath := cfg.LogPath; logPath != "" {
		if err := io.MakeDirForFile(logPath, "logger"); err != nil {
			return nil, nil, err
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}

// GetAccounts returns signing accounts. The wallet (given by flags or
// configuration) provides a single account selected with --address, the
// mnemonic provides the configured number of derived accounts. The configured
// password only applies to the configured wallet or mnemonic, a wallet given
// with --wallet is unlocked with a password read from the terminal.
func GetAccounts(ctx *cli.Context, cfg config.Wallet) ([]*wallet.Account, error) {
	var (
		wPath            = ctx.String("wallet")
		walletConfigPath = ctx.String("wallet-config")
	)
	if len(wPath) != 0 && len(walletConfigPath) != 0 {
		return nil, errConflictingWalletFlags
	}
	if len(wPath) == 0 && len(walletConfigPath) == 0 && cfg.Mnemonic != "" {
		n := cfg.Accounts
		if n == 0 {
			n = 1
		}
		return mnemonic.Accounts(cfg.Mnemonic, cfg.Password, n)
	}

	var pass *string
	switch {
	case len(walletConfigPath) != 0:
		wc, err := ReadWalletConfig(walletConfigPath)
		if err != nil {
			return nil, err
		}
		wPath = wc.Path
		pass = &wc.Password
	case len(wPath) == 0:
		wPath = cfg.Path
		if cfg.Password != "" {
			pass = &cfg.Password
		}
	}
	if len(wPath) == 0 {
		return nil, errNoWallet
	}

	wall, err := wallet.NewWalletFromFile(wPath)
	if err != nil {
		return nil, err
	}

	var addr util.Uint160
	if addrFlag, ok := ctx.Generic(Address.Name).(*flags.Address); ok && addrFlag.IsSet {
		addr = addrFlag.Uint160()
	} else {
		addr = wall.GetChangeAddress()
		if addr.Equals(util.Uint160{}) {
			return nil, errors.New("can't get default address")
		}
	}
	acc, err := GetUnlockedAccount(wall, addr, pass)
	if err != nil {
		return nil, err
	}
	return []*wallet.Account{acc}, nil
}

// GetUnlockedAccount returns account from wallet, address and uses pass to unlock specified account if given.
// If the password is not given, then it is requested from user.
func GetUnlockedAccount(wall *wallet.Wallet, addr util.Uint160, pass *string) (*wallet.Account, error) {
	acc := wall.GetAccount(addr)
	if acc == nil {
		return nil, fmt.Errorf("wallet contains no account for '%s'", address.Uint160ToString(addr))
	}

	if acc.CanSign() || acc.EncryptedWIF == "" {
		return acc, nil
	}

	if pass == nil {
		rawPass, err := input.ReadPassword(
			fmt.Sprintf("Enter account %s password > ", address.Uint160ToString(addr)))
		if err != nil {
			return nil, fmt.Errorf("Error reading password: %w", err)
		}
		trimmed := strings.TrimRight(rawPass, "\n")
		pass = &trimmed
	}
	err := acc.Decrypt(*pass, wall.Scrypt)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// ReadWalletConfig reads wallet config from the given path.
func ReadWalletConfig(configPath string) (*config.Wallet, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read wallet config: %w", err)
	}

	cfg := &config.Wallet{}

	err = yaml.Unmarshal(configData, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet config YAML: %w", err)
	}
	return cfg, nil
}

// GetRPCChain connects to the configured RPC node with the given accounts.
func GetRPCChain(cfg config.RPC, log *zap.Logger, accounts []*wallet.Account) (*rpcchain.Chain, error) {
	if len(cfg.Endpoint) == 0 {
		return nil, errNoEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return rpcchain.Dial(context.Background(), cfg.Endpoint, timeout, log, accounts...)
}

// awaitTimeout is the approximate time of three Neo N3 mainnet blocks
// accepting.
const awaitTimeout = 3 * 15 * time.Second

// GetAwaitContext returns a context for operations awaiting transactions.
func GetAwaitContext(cfg config.RPC) (context.Context, func()) {
	dur := cfg.Timeout
	if dur < awaitTimeout {
		dur = awaitTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}
