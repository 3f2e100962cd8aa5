/*
Package lottery provides a typed client of the Lottery contract.

It works over any chain.Client, so the same code drives an in-memory ledger,
an in-process test chain and a remote node. Contract exceptions are mapped to
the ledger package errors, settlements are decoded from Winner notifications.
*/
package lottery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-lottery/pkg/chain"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
	"github.com/nspcc-dev/neo-lottery/pkg/history"
	"github.com/nspcc-dev/neo-lottery/pkg/ledger"
	"github.com/nspcc-dev/neo-lottery/pkg/metrics"
	"go.uber.org/zap"
)

// EnterMethod is the transfer data marking a GAS payment as an entry.
const EnterMethod = "enter"

// Contract events.
const (
	EnteredEvent = "Entered"
	WinnerEvent  = "Winner"
)

// ErrNoHistory is returned by History when no history store is attached.
var ErrNoHistory = errors.New("history is not enabled")

// DeployParams are optional deployment parameters, zero values mean contract
// defaults (the deployer is the manager, the fee is 0.01 GAS).
type DeployParams struct {
	Manager  *util.Uint160
	EntryFee *big.Int
}

// Option configures Lottery.
type Option func(*Lottery)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Lottery) {
		l.log = log
	}
}

// WithHistory makes Lottery record every settlement.
func WithHistory(h *history.History) Option {
	return func(l *Lottery) {
		l.history = h
	}
}

// WithMetrics enables Prometheus metrics updates.
func WithMetrics() Option {
	return func(l *Lottery) {
		l.metrics = true
	}
}

// Lottery is a deployed lottery contract.
type Lottery struct {
	client  chain.Client
	hash    util.Uint160
	log     *zap.Logger
	history *history.History
	metrics bool
}

// New creates a client of the contract deployed at hash.
func New(client chain.Client, hash util.Uint160, opts ...Option) *Lottery {
	l := &Lottery{
		client: client,
		hash:   hash,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Deploy deploys the artifact and returns a client for it.
func Deploy(ctx context.Context, client chain.Client, art *compile.Artifact, p DeployParams, opts ...Option) (*Lottery, error) {
	var args []any
	if p.Manager != nil || p.EntryFee != nil {
		args = []any{nil, nil}
		if p.Manager != nil {
			args[0] = *p.Manager
		}
		if p.EntryFee != nil {
			args[1] = p.EntryFee
		}
	}
	h, err := client.Deploy(ctx, art, args...)
	if err != nil {
		return nil, mapError(err)
	}
	l := New(client, h, opts...)
	l.log.Info("lottery deployed", zap.Stringer("hash", h))
	return l, nil
}

// Hash returns the contract hash.
func (l *Lottery) Hash() util.Uint160 {
	return l.hash
}

// Enter registers the player by transferring amount of GAS to the contract.
func (l *Lottery) Enter(ctx context.Context, player util.Uint160, amount *big.Int) (*chain.Result, error) {
	res, err := l.client.Call(ctx, l.hash, EnterMethod, chain.CallOpts{Caller: player, Value: amount})
	if err != nil {
		err = mapError(err)
		l.reject("enter", err)
		return nil, err
	}
	if l.metrics {
		metrics.AddEntry()
	}
	l.log.Debug("entered", zap.Stringer("player", player), zap.Stringer("amount", amount))
	return res, nil
}

// Players returns the players of the current round in entry order.
func (l *Lottery) Players(ctx context.Context) ([]util.Uint160, error) {
	res, err := l.client.Read(ctx, l.hash, "getPlayers")
	if err != nil {
		return nil, mapError(err)
	}
	players, err := res.Uint160Array()
	if err != nil {
		return nil, err
	}
	if l.metrics {
		metrics.SetPlayers(len(players))
	}
	return players, nil
}

// PickWinner settles the round, it must be called by the manager.
func (l *Lottery) PickWinner(ctx context.Context, manager util.Uint160) (*history.Record, error) {
	res, err := l.client.Call(ctx, l.hash, "pickWinner", chain.CallOpts{Caller: manager})
	if err != nil {
		err = mapError(err)
		l.reject("pickWinner", err)
		return nil, err
	}

	r, err := l.settlement(res)
	if err != nil {
		return nil, err
	}
	if l.metrics {
		metrics.AddSettlement(r.Prize)
	}
	l.log.Info("winner picked",
		zap.Stringer("contract", l.hash),
		zap.Uint64("round", r.Round),
		zap.Stringer("winner", r.Winner),
		zap.Stringer("prize", r.Prize),
		zap.Int("players", r.Players))
	if l.history != nil {
		// The round is settled on chain anyway.
		if err := l.history.Put(*r); err != nil {
			l.log.Warn("failed to record settlement", zap.Uint64("round", r.Round), zap.Error(err))
		}
	}
	return r, nil
}

// settlement decodes the Winner notification: winner, prize, round, winner
// index and the number of players.
func (l *Lottery) settlement(res *chain.Result) (*history.Record, error) {
	params := res.Event(l.hash, WinnerEvent)
	if len(params) != 5 {
		return nil, fmt.Errorf("no valid %s event in %s", WinnerEvent, res.Tx.StringLE())
	}
	winner, err := chain.ItemToUint160(params[0])
	if err != nil {
		return nil, fmt.Errorf("invalid winner: %w", err)
	}
	prize, err := params[1].TryInteger()
	if err != nil {
		return nil, fmt.Errorf("invalid prize: %w", err)
	}
	round, err := params[2].TryInteger()
	if err != nil || !round.IsUint64() {
		return nil, fmt.Errorf("invalid round: %v", params[2].Value())
	}
	idx, err := params[3].TryInteger()
	if err != nil || !idx.IsInt64() {
		return nil, fmt.Errorf("invalid winner index: %v", params[3].Value())
	}
	n, err := params[4].TryInteger()
	if err != nil || !n.IsInt64() || idx.Sign() < 0 || idx.Cmp(n) >= 0 {
		return nil, fmt.Errorf("invalid number of players: %v", params[4].Value())
	}
	return &history.Record{
		Contract: l.hash,
		Settlement: ledger.Settlement{
			ID:      uuid.New(),
			Round:   round.Uint64(),
			Winner:  winner,
			Index:   int(idx.Int64()),
			Prize:   prize,
			Players: int(n.Int64()),
			Time:    time.Now(),
		},
	}, nil
}

// Manager returns the contract manager.
func (l *Lottery) Manager(ctx context.Context) (util.Uint160, error) {
	res, err := l.client.Read(ctx, l.hash, "getManager")
	if err != nil {
		return util.Uint160{}, mapError(err)
	}
	return res.Uint160()
}

// EntryFee returns the minimum entry amount.
func (l *Lottery) EntryFee(ctx context.Context) (*big.Int, error) {
	res, err := l.client.Read(ctx, l.hash, "getEntryFee")
	if err != nil {
		return nil, mapError(err)
	}
	return res.BigInt()
}

// Round returns the number of settled rounds.
func (l *Lottery) Round(ctx context.Context) (uint64, error) {
	res, err := l.client.Read(ctx, l.hash, "getRound")
	if err != nil {
		return 0, mapError(err)
	}
	v, err := res.BigInt()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("invalid round: %s", v)
	}
	return v.Uint64(), nil
}

// Balance returns the prize accumulated in the current round.
func (l *Lottery) Balance(ctx context.Context) (*big.Int, error) {
	return l.client.Balance(ctx, l.hash)
}

// History returns recorded settlements of the contract.
func (l *Lottery) History() ([]history.Record, error) {
	if l.history == nil {
		return nil, ErrNoHistory
	}
	return l.history.List(l.hash)
}

func (l *Lottery) reject(op string, err error) {
	l.log.Debug("operation rejected", zap.String("operation", op), zap.Error(err))
	if l.metrics {
		metrics.AddRejected(op, reason(err))
	}
}

// mapError makes contract exceptions match the ledger errors.
func mapError(err error) error {
	for _, target := range []error{ledger.ErrEntryFeeTooLow, ledger.ErrNotManager, ledger.ErrNoPlayers} {
		if errors.Is(err, target) {
			return err
		}
	}
	var f *chain.FaultError
	if !errors.As(err, &f) {
		return err
	}
	for _, target := range []error{ledger.ErrEntryFeeTooLow, ledger.ErrNotManager, ledger.ErrNoPlayers} {
		if strings.Contains(f.Exception, target.Error()) {
			return fmt.Errorf("%w: %w", target, err)
		}
	}
	return err
}

func reason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrEntryFeeTooLow):
		return metrics.ReasonEntryFeeTooLow
	case errors.Is(err, ledger.ErrNotManager):
		return metrics.ReasonNotManager
	case errors.Is(err, ledger.ErrNoPlayers):
		return metrics.ReasonNoPlayers
	case errors.Is(err, chain.ErrFault):
		return metrics.ReasonFault
	default:
		return metrics.ReasonOther
	}
}
