package lottery

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/neo-lottery/cli/options"
	"github.com/nspcc-dev/neo-lottery/pkg/chain/memchain"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
	"github.com/nspcc-dev/neo-lottery/pkg/ledger"
	lotteryclient "github.com/nspcc-dev/neo-lottery/pkg/lottery"
	"github.com/nspcc-dev/neo-lottery/pkg/metrics"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func newSimulateCommand() *cli.Command {
	return &cli.Command{
		Name:      "simulate",
		Usage:     "Play the lottery locally without a network",
		UsageText: "neo-lottery lottery simulate [--config-file <file>] [--players <n>] [--rounds <n>] [--amount <gas>] [--seed <string>]",
		Description: `Compiles the contract and plays the given number of rounds on an in-memory
   chain: every player enters each round, then the manager picks a winner.
   With --seed winners are chosen deterministically, otherwise a
   cryptographically secure source is used. Settlements are recorded to the
   configured history database, metrics are served when Prometheus is enabled.`,
		Action: simulate,
		Flags: []cli.Flag{
			options.ConfigFile,
			options.Debug,
			&cli.IntFlag{
				Name:  "players",
				Usage: "Number of players",
				Value: 3,
			},
			&cli.IntFlag{
				Name:  "rounds",
				Usage: "Number of rounds",
				Value: 1,
			},
			amountFlag,
			&cli.StringFlag{
				Name:  "seed",
				Usage: "Seed for deterministic winner selection",
			},
		},
	}
}

func simulate(ctx *cli.Context) error {
	cfg, log, err := getConfigAndLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	n, rounds := ctx.Int("players"), ctx.Int("rounds")
	if n <= 0 || rounds <= 0 {
		return cli.Exit("players and rounds must be positive", 1)
	}
	fee := big.NewInt(cfg.Contract.EntryFee)
	amount := fee
	if ctx.IsSet(amountFlag.Name) {
		if amount, err = fixedn.FromString(ctx.String(amountFlag.Name), gasPrecision); err != nil {
			return cli.Exit(fmt.Errorf("invalid amount: %w", err), 1)
		}
	}

	svc, err := compile.NewService(log, compile.DefaultCacheSize)
	if err != nil {
		return cli.Exit(err, 1)
	}
	svc.Register(cfg.Contract.Name, cfg.Contract.Source, cfg.Contract.Config)
	art, err := svc.Compile(cfg.Contract.Name)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to compile: %w", err), 1)
	}

	var rnd ledger.Randomness = ledger.CryptoRandomness{}
	if seed := ctx.String("seed"); seed != "" {
		rnd = ledger.NewHashRandomness([]byte(seed))
	}
	manager, err := wallet.NewAccount()
	if err != nil {
		return cli.Exit(err, 1)
	}
	mc := memchain.New(manager.ScriptHash(), memchain.WithLogger(log), memchain.WithRandomness(rnd))
	players := make([]util.Uint160, n)
	for i := range players {
		acc, err := wallet.NewAccount()
		if err != nil {
			return cli.Exit(err, 1)
		}
		players[i] = acc.ScriptHash()
		mc.Fund(players[i], new(big.Int).Mul(amount, big.NewInt(int64(rounds))))
	}

	hist, err := openHistory(cfg, log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer hist.Close()
	opts := []lotteryclient.Option{lotteryclient.WithLogger(log), lotteryclient.WithHistory(hist)}
	if cfg.Prometheus.Enabled {
		ms := metrics.NewService(cfg.Prometheus, log)
		if err := ms.Start(); err != nil {
			return cli.Exit(err, 1)
		}
		defer ms.ShutDown()
		opts = append(opts, lotteryclient.WithMetrics())
	}

	gctx := context.Background()
	l, err := lotteryclient.Deploy(gctx, mc, art, lotteryclient.DeployParams{EntryFee: fee}, opts...)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to deploy: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Contract: %s\n", l.Hash().StringLE())
	for range rounds {
		for _, p := range players {
			if _, err := l.Enter(gctx, p, amount); err != nil {
				return cli.Exit(fmt.Errorf("failed to enter: %w", err), 1)
			}
		}
		r, err := l.PickWinner(gctx, manager.ScriptHash())
		if err != nil {
			return cli.Exit(fmt.Errorf("failed to pick a winner: %w", err), 1)
		}
		printRecord(ctx.App.Writer, r)
	}
	log.Info("simulation finished", zap.Stringer("contract", l.Hash()), zap.Int("rounds", rounds))
	return nil
}
