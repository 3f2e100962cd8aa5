/*
Package contract implements the contract compilation and deployment commands.
*/
package contract

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-lottery/cli/flags"
	"github.com/nspcc-dev/neo-lottery/cli/options"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/nspcc-dev/neo-lottery/pkg/lottery"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// gasPrecision is the number of GAS decimals.
const gasPrecision = 8

var (
	inFlag = &cli.StringFlag{
		Name:    "in",
		Aliases: []string{"i"},
		Usage:   "Input contract package directory (overrides configuration)",
	}
	contractConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Contract configuration file (overrides configuration)",
	}
	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Output directory for the NEF and manifest files (overrides configuration)",
	}
	nefFlag = &cli.StringFlag{
		Name:  "nef",
		Usage: "Deploy the given NEF file instead of compiling sources (requires --manifest)",
	}
	manifestFlag = &cli.StringFlag{
		Name:  "manifest",
		Usage: "Manifest file of the contract given by --nef",
	}
	managerFlag = &flags.AddressFlag{
		Name:  "manager",
		Usage: "Lottery manager (the deployer by default)",
	}
	feeFlag = &cli.StringFlag{
		Name:  "fee",
		Usage: "Minimum entry amount in GAS, e.g. 0.5 (overrides configuration)",
	}
)

// NewCommands returns 'contract' command.
func NewCommands() []*cli.Command {
	commonFlags := []cli.Flag{options.ConfigFile, options.Debug, inFlag, contractConfigFlag}
	deployFlags := append([]cli.Flag{nefFlag, manifestFlag, managerFlag, feeFlag, options.Address}, commonFlags...)
	deployFlags = append(deployFlags, options.RPC...)
	deployFlags = append(deployFlags, options.Wallet...)
	return []*cli.Command{{
		Name:  "contract",
		Usage: "Compile and deploy the lottery contract",
		Subcommands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "Compile the lottery contract into NEF and manifest files",
				UsageText: "neo-lottery contract compile [--config-file <file>] [-i <dir>] [--config <contract.yml>] [-o <dir>]",
				Action:    compileContract,
				Flags:     append([]cli.Flag{outFlag}, commonFlags...),
			},
			{
				Name:  "deploy",
				Usage: "Deploy the lottery contract",
				UsageText: "neo-lottery contract deploy [--config-file <file>] [-r <endpoint>] [-w <wallet> | --wallet-config <path>] [-a <address>]\n" +
					"\t[--manager <address>] [--fee <gas>] [--nef <file> --manifest <file>]",
				Description: `Compiles the contract (or takes the given NEF and manifest) and deploys it
   to the network using the given wallet (or the configured mnemonic). The
   deployer is the lottery manager unless --manager is given. The contract
   hash is printed on success.`,
				Action: deployContract,
				Flags:  deployFlags,
			},
		},
	}}
}

func getConfigAndLogger(ctx *cli.Context) (config.Config, *zap.Logger, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return config.Config{}, nil, cli.Exit(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return config.Config{}, nil, cli.Exit(err, 1)
	}
	return cfg, log, nil
}

func getSource(ctx *cli.Context, cfg config.Contract) compile.Source {
	src := compile.Source{Dir: cfg.Source, Config: cfg.Config}
	if ctx.IsSet(inFlag.Name) {
		src.Dir = ctx.String(inFlag.Name)
	}
	if ctx.IsSet(contractConfigFlag.Name) {
		src.Config = ctx.String(contractConfigFlag.Name)
	}
	return src
}

// compileArtifact compiles the configured contract source.
func compileArtifact(ctx *cli.Context, cfg config.Contract, log *zap.Logger) (*compile.Artifact, error) {
	svc, err := compile.NewService(log, compile.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	src := getSource(ctx, cfg)
	svc.Register(cfg.Name, src.Dir, src.Config)
	return svc.Compile(cfg.Name)
}

func compileContract(ctx *cli.Context) error {
	cfg, log, err := getConfigAndLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ccfg := cfg.ApplicationConfiguration.Contract

	art, err := compileArtifact(ctx, ccfg, log)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to compile: %w", err), 1)
	}
	out := ccfg.OutputDir
	if ctx.IsSet(outFlag.Name) {
		out = ctx.String(outFlag.Name)
	}
	nefPath, manifestPath, err := art.Save(out)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Fprintf(ctx.App.Writer, "NEF: %s\nManifest: %s\n", nefPath, manifestPath)
	return nil
}

func deployContract(ctx *cli.Context) error {
	cfg, log, err := getConfigAndLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	acfg := cfg.ApplicationConfiguration
	p := lottery.DeployParams{EntryFee: big.NewInt(acfg.Contract.EntryFee)}
	if ctx.IsSet(feeFlag.Name) {
		if p.EntryFee, err = parseFee(ctx.String(feeFlag.Name)); err != nil {
			return cli.Exit(err, 1)
		}
	}
	if m := managerFlag.Get(ctx); m.IsSet {
		manager := m.Uint160()
		p.Manager = &manager
	}

	var art *compile.Artifact
	switch nefPath, manifestPath := ctx.String(nefFlag.Name), ctx.String(manifestFlag.Name); {
	case nefPath != "" && manifestPath != "":
		art, err = compile.Load(nefPath, manifestPath)
	case nefPath != "" || manifestPath != "":
		err = fmt.Errorf("both --%s and --%s are required", nefFlag.Name, manifestFlag.Name)
	default:
		art, err = compileArtifact(ctx, acfg.Contract, log)
	}
	if err != nil {
		return cli.Exit(err, 1)
	}

	accs, err := options.GetAccounts(ctx, acfg.Wallet)
	if err != nil {
		return cli.Exit(err, 1)
	}
	c, err := options.GetRPCChain(acfg.RPC, log, accs)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer c.Close()

	gctx, cancel := options.GetAwaitContext(acfg.RPC)
	defer cancel()
	l, err := lottery.Deploy(gctx, c, art, p, lottery.WithLogger(log))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to deploy: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Contract: %s (%s)\n", l.Hash().StringLE(), address.Uint160ToString(l.Hash()))
	return nil
}

// parseFee parses a decimal GAS amount.
func parseFee(s string) (*big.Int, error) {
	fee, err := fixedn.FromString(s, gasPrecision)
	if err != nil {
		return nil, fmt.Errorf("invalid fee %q: %w", s, err)
	}
	if fee.Sign() < 0 {
		return nil, fmt.Errorf("invalid fee %q: negative amount", s)
	}
	return fee, nil
}
