/*
Package lottery implements commands working with a deployed lottery contract
and a local simulation of the game.
*/
package lottery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/neo-lottery/cli/flags"
	"github.com/nspcc-dev/neo-lottery/cli/options"
	"github.com/nspcc-dev/neo-lottery/pkg/chain/rpcchain"
	"github.com/nspcc-dev/neo-lottery/pkg/config"
	"github.com/nspcc-dev/neo-lottery/pkg/history"
	lotteryclient "github.com/nspcc-dev/neo-lottery/pkg/lottery"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// gasPrecision is the number of GAS decimals.
const gasPrecision = 8

var errNoContract = errors.New("no contract specified, use option '--contract' or '-c' or set it in the configuration")

var (
	contractFlag = &cli.StringFlag{
		Name:    "contract",
		Aliases: []string{"c"},
		Usage:   "Lottery contract hash or address (overrides configuration)",
	}
	amountFlag = &cli.StringFlag{
		Name:  "amount",
		Usage: "Amount of GAS to pay (the contract entry fee by default)",
	}
)

// NewCommands returns 'lottery' command.
func NewCommands() []*cli.Command {
	commonFlags := []cli.Flag{options.ConfigFile, options.Debug, contractFlag}
	readFlags := append(append([]cli.Flag{}, commonFlags...), options.RPC...)
	signFlags := append(append([]cli.Flag{options.Address}, readFlags...), options.Wallet...)
	return []*cli.Command{{
		Name:  "lottery",
		Usage: "Play the lottery",
		Subcommands: []*cli.Command{
			{
				Name:      "enter",
				Usage:     "Enter the lottery by transferring GAS to the contract",
				UsageText: "neo-lottery lottery enter [-c <hash>] [-r <endpoint>] [-w <wallet> | --wallet-config <path>] [-a <address>] [--amount <gas>]",
				Action:    enter,
				Flags:     append([]cli.Flag{amountFlag}, signFlags...),
			},
			{
				Name:      "players",
				Usage:     "List players of the current round",
				UsageText: "neo-lottery lottery players [-c <hash>] [-r <endpoint>]",
				Action:    players,
				Flags:     readFlags,
			},
			{
				Name:  "pick",
				Usage: "Pick the winner of the current round",
				UsageText: "neo-lottery lottery pick [-c <hash>] [-r <endpoint>] [-w <wallet> | --wallet-config <path>] [-a <address>]",
				Description: `Settles the current round, the signer must be the lottery manager. The
   whole contract balance is transferred to the winner and the settlement is
   recorded to the configured history database.`,
				Action: pick,
				Flags:  signFlags,
			},
			{
				Name:      "info",
				Usage:     "Show the lottery state",
				UsageText: "neo-lottery lottery info [-c <hash>] [-r <endpoint>]",
				Action:    info,
				Flags:     readFlags,
			},
			{
				Name:      "history",
				Usage:     "Show recorded settlements of the contract",
				UsageText: "neo-lottery lottery history [-c <hash>] [--config-file <file>]",
				Action:    showHistory,
				Flags:     commonFlags,
			},
			newSimulateCommand(),
		},
	}}
}

// session is a connection to a deployed lottery.
type session struct {
	cfg     config.ApplicationConfiguration
	log     *zap.Logger
	chain   *rpcchain.Chain
	accs    []*wallet.Account
	lottery *lotteryclient.Lottery
	history *history.History
}

func getConfigAndLogger(ctx *cli.Context) (config.ApplicationConfiguration, *zap.Logger, error) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return config.ApplicationConfiguration{}, nil, cli.Exit(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return config.ApplicationConfiguration{}, nil, cli.Exit(err, 1)
	}
	return cfg.ApplicationConfiguration, log, nil
}

func getContract(ctx *cli.Context, cfg config.Contract) (util.Uint160, error) {
	s := cfg.Hash
	if ctx.IsSet(contractFlag.Name) {
		s = ctx.String(contractFlag.Name)
	}
	if s == "" {
		return util.Uint160{}, errNoContract
	}
	h, err := flags.ParseAddress(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("invalid contract hash %q: %w", s, err)
	}
	return h, nil
}

func openHistory(cfg config.ApplicationConfiguration, log *zap.Logger) (*history.History, error) {
	store, err := history.NewStore(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return history.New(store, log), nil
}

// newSession connects to the node. Signing sessions get wallet accounts,
// others use a throwaway account for test invocations only.
func newSession(ctx *cli.Context, signing bool) (*session, error) {
	cfg, log, err := getConfigAndLogger(ctx)
	if err != nil {
		return nil, err
	}
	h, err := getContract(ctx, cfg.Contract)
	if err != nil {
		return nil, cli.Exit(err, 1)
	}

	var accs []*wallet.Account
	if signing {
		accs, err = options.GetAccounts(ctx, cfg.Wallet)
	} else {
		var acc *wallet.Account
		acc, err = wallet.NewAccount()
		accs = []*wallet.Account{acc}
	}
	if err != nil {
		return nil, cli.Exit(err, 1)
	}

	s := &session{cfg: cfg, log: log, accs: accs}
	opts := []lotteryclient.Option{lotteryclient.WithLogger(log)}
	if cfg.Prometheus.Enabled {
		opts = append(opts, lotteryclient.WithMetrics())
	}
	if signing {
		s.history, err = openHistory(cfg, log)
		if err != nil {
			return nil, cli.Exit(err, 1)
		}
		opts = append(opts, lotteryclient.WithHistory(s.history))
	}
	s.chain, err = options.GetRPCChain(cfg.RPC, log, accs)
	if err != nil {
		s.Close()
		return nil, cli.Exit(err, 1)
	}
	s.lottery = lotteryclient.New(s.chain, h, opts...)
	return s, nil
}

// signer returns the account selected with --address or the first one.
func (s *session) signer(ctx *cli.Context) (util.Uint160, error) {
	addr := options.Address.Get(ctx)
	if !addr.IsSet {
		return s.accs[0].ScriptHash(), nil
	}
	for _, acc := range s.accs {
		if acc.ScriptHash().Equals(addr.Value) {
			return addr.Value, nil
		}
	}
	return util.Uint160{}, fmt.Errorf("no account for %s", addr)
}

func (s *session) Close() {
	if s.chain != nil {
		s.chain.Close()
	}
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.log.Warn("failed to close history", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

func enter(ctx *cli.Context) error {
	s, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	player, err := s.signer(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}

	gctx, cancel := options.GetAwaitContext(s.cfg.RPC)
	defer cancel()
	amount, err := getAmount(gctx, ctx, s.lottery)
	if err != nil {
		return cli.Exit(err, 1)
	}
	res, err := s.lottery.Enter(gctx, player, amount)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to enter: %w", err), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "Entered: %s with %s GAS\nTransaction: %s\n",
		address.Uint160ToString(player), fixedn.ToString(amount, gasPrecision), res.Tx.StringLE())
	return nil
}

func getAmount(gctx context.Context, ctx *cli.Context, l *lotteryclient.Lottery) (*big.Int, error) {
	if !ctx.IsSet(amountFlag.Name) {
		return l.EntryFee(gctx)
	}
	amount, err := fixedn.FromString(ctx.String(amountFlag.Name), gasPrecision)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	return amount, nil
}

func players(ctx *cli.Context) error {
	s, err := newSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	gctx, cancel := options.GetTimeoutContext(s.cfg.RPC)
	defer cancel()
	ps, err := s.lottery.Players(gctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	for i, p := range ps {
		fmt.Fprintf(ctx.App.Writer, "%d\t%s\n", i, address.Uint160ToString(p))
	}
	return nil
}

func pick(ctx *cli.Context) error {
	s, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	manager, err := s.signer(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}

	gctx, cancel := options.GetAwaitContext(s.cfg.RPC)
	defer cancel()
	r, err := s.lottery.PickWinner(gctx, manager)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to pick a winner: %w", err), 1)
	}
	printRecord(ctx.App.Writer, r)
	return nil
}

func info(ctx *cli.Context) error {
	s, err := newSession(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	gctx, cancel := options.GetTimeoutContext(s.cfg.RPC)
	defer cancel()
	l := s.lottery
	manager, err := l.Manager(gctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fee, err := l.EntryFee(gctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	round, err := l.Round(gctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	balance, err := l.Balance(gctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	ps, err := l.Players(gctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "Contract:\t%s\n", l.Hash().StringLE())
	fmt.Fprintf(w, "Manager:\t%s\n", address.Uint160ToString(manager))
	fmt.Fprintf(w, "Entry fee:\t%s GAS\n", fixedn.ToString(fee, gasPrecision))
	fmt.Fprintf(w, "Round:\t\t%d\n", round)
	fmt.Fprintf(w, "Balance:\t%s GAS\n", fixedn.ToString(balance, gasPrecision))
	fmt.Fprintf(w, "Players:\t%d\n", len(ps))
	return nil
}

func showHistory(ctx *cli.Context) error {
	cfg, log, err := getConfigAndLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	h, err := getContract(ctx, cfg.Contract)
	if err != nil {
		return cli.Exit(err, 1)
	}
	hist, err := openHistory(cfg, log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer hist.Close()

	records, err := hist.List(h)
	if err != nil {
		return cli.Exit(err, 1)
	}
	for i := range records {
		printRecord(ctx.App.Writer, &records[i])
	}
	return nil
}

func printRecord(w io.Writer, r *history.Record) {
	fmt.Fprintf(w, "Round %d: winner %s (#%d of %d), prize %s GAS, %s\n",
		r.Round,
		address.Uint160ToString(r.Winner),
		r.Index,
		r.Players,
		fixedn.ToString(r.Prize, gasPrecision),
		r.ID)
}
