/*
Package memchain provides an in-memory chain client backed by the native
lottery ledger.

No VM is involved: deployed artifacts are checked to expose the lottery
interface and every call is dispatched to a ledger.Ledger instance. GAS
balances are plain counters, there are no fees.
*/
package memchain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-lottery/pkg/chain"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
	"github.com/nspcc-dev/neo-lottery/pkg/ledger"
	"go.uber.org/zap"
)

// EnterMethod is the payable method name (transfer data) registering a player.
const EnterMethod = "enter"

// requiredMethods must be present in an artifact's ABI.
var requiredMethods = []string{"getPlayers", "pickWinner", "onNEP17Payment"}

// Option configures Chain.
type Option func(*Chain)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Chain) {
		c.log = log
	}
}

// WithRandomness sets the winner selection source for deployed contracts.
func WithRandomness(rnd ledger.Randomness) Option {
	return func(c *Chain) {
		c.rnd = rnd
	}
}

// WithBalance credits the account with the given amount of GAS.
func WithBalance(account util.Uint160, amount *big.Int) Option {
	return func(c *Chain) {
		c.credit(account, amount)
	}
}

type contract struct {
	art    *compile.Artifact
	ledger *ledger.Ledger
}

// Chain is an in-memory chain.Client.
type Chain struct {
	log    *zap.Logger
	sender util.Uint160
	rnd    ledger.Randomness

	lock      sync.Mutex
	balances  map[util.Uint160]*big.Int
	contracts map[util.Uint160]*contract
	txs       uint64
}

var _ chain.Client = (*Chain)(nil)

// New creates an empty chain with sender as the default account.
func New(sender util.Uint160, opts ...Option) *Chain {
	c := &Chain{
		log:       zap.NewNop(),
		sender:    sender,
		rnd:       ledger.CryptoRandomness{},
		balances:  make(map[util.Uint160]*big.Int),
		contracts: make(map[util.Uint160]*contract),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fund credits the account with the given amount of GAS.
func (c *Chain) Fund(account util.Uint160, amount *big.Int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.credit(account, amount)
}

// Sender implements chain.Client.
func (c *Chain) Sender() util.Uint160 {
	return c.sender
}

// Deploy implements chain.Client. args are an optional manager (util.Uint160)
// and an optional entry fee (*big.Int or any integer).
func (c *Chain) Deploy(_ context.Context, art *compile.Artifact, args ...any) (util.Uint160, error) {
	for _, name := range requiredMethods {
		if art.Method(name) == nil {
			return util.Uint160{}, fmt.Errorf("%s is not a lottery contract: no %s method", art.Name, name)
		}
	}
	manager, fee, err := parseDeployArgs(c.sender, args)
	if err != nil {
		return util.Uint160{}, chain.NewFaultError(err.Error(), err)
	}

	h := art.Hash(c.sender)

	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.contracts[h]; ok {
		return util.Uint160{}, chain.NewFaultError("contract already exists", nil)
	}
	l, err := ledger.New(manager, fee, c.rnd, ledger.WithPayout(func(s ledger.Settlement) {
		c.balances[h] = new(big.Int)
		c.credit(s.Winner, s.Prize)
	}))
	if err != nil {
		return util.Uint160{}, chain.NewFaultError(err.Error(), err)
	}
	c.contracts[h] = &contract{art: art, ledger: l}
	c.nextTx()
	c.log.Info("contract deployed",
		zap.String("name", art.Manifest.Name),
		zap.Stringer("hash", h),
		zap.Stringer("manager", manager))
	return h, nil
}

// Call implements chain.Client.
func (c *Chain) Call(_ context.Context, contractHash util.Uint160, method string, opts chain.CallOpts, args ...any) (*chain.Result, error) {
	caller := opts.Caller
	if caller.Equals(util.Uint160{}) {
		caller = c.sender
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	ctr, ok := c.contracts[contractHash]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownContract, contractHash.StringLE())
	}

	if opts.Value != nil {
		return c.pay(contractHash, ctr, caller, opts.Value, method)
	}
	if ctr.art.Method(method) == nil {
		return nil, chain.NewFaultError(fmt.Sprintf("method not found: %s/%d", method, len(args)), nil)
	}

	switch method {
	case "pickWinner":
		s, err := ctr.ledger.PickWinner(caller)
		if err != nil {
			return nil, chain.NewFaultError(err.Error(), err)
		}
		c.log.Debug("winner picked",
			zap.Stringer("contract", contractHash),
			zap.Stringer("winner", s.Winner),
			zap.Stringer("prize", s.Prize))
		return &chain.Result{
			Tx:    c.nextTx(),
			Stack: []stackitem.Item{stackitem.NewByteArray(s.Winner.BytesBE())},
			Events: []state.NotificationEvent{{
				ScriptHash: contractHash,
				Name:       "Winner",
				Item: stackitem.NewArray([]stackitem.Item{
					stackitem.NewByteArray(s.Winner.BytesBE()),
					stackitem.NewBigInteger(s.Prize),
					stackitem.NewBigInteger(new(big.Int).SetUint64(s.Round)),
					stackitem.Make(s.Index),
					stackitem.Make(s.Players),
				}),
			}},
		}, nil
	default:
		res, err := read(ctr.ledger, method)
		if err != nil {
			return nil, err
		}
		res.Tx = c.nextTx()
		return res, nil
	}
}

// Read implements chain.Client.
func (c *Chain) Read(_ context.Context, contractHash util.Uint160, method string, args ...any) (*chain.Result, error) {
	c.lock.Lock()
	ctr, ok := c.contracts[contractHash]
	c.lock.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownContract, contractHash.StringLE())
	}
	if ctr.art.Method(method) == nil {
		return nil, chain.NewFaultError(fmt.Sprintf("method not found: %s/%d", method, len(args)), nil)
	}
	return read(ctr.ledger, method)
}

// Balance implements chain.Client.
func (c *Chain) Balance(_ context.Context, account util.Uint160) (*big.Int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if b, ok := c.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// pay handles a GAS transfer to the lottery, c.lock must be held.
func (c *Chain) pay(h util.Uint160, ctr *contract, caller util.Uint160, value *big.Int, purpose string) (*chain.Result, error) {
	if value.Sign() < 0 {
		return nil, chain.NewFaultError("negative amount", nil)
	}
	if purpose != "" && purpose != EnterMethod {
		return nil, chain.NewFaultError("unknown payment purpose", nil)
	}
	balance, ok := c.balances[caller]
	if !ok {
		balance = new(big.Int)
	}
	if balance.Cmp(value) < 0 {
		return nil, fmt.Errorf("%w: %s has insufficient funds", chain.ErrTransferFailed, caller.StringLE())
	}
	if err := ctr.ledger.Join(caller, value); err != nil {
		return nil, chain.NewFaultError(err.Error(), err)
	}
	c.credit(caller, new(big.Int).Neg(value))
	c.credit(h, value)

	c.log.Debug("player entered",
		zap.Stringer("contract", h),
		zap.Stringer("player", caller),
		zap.Stringer("amount", value))
	return &chain.Result{
		Tx:    c.nextTx(),
		Stack: []stackitem.Item{stackitem.NewBool(true)},
		Events: []state.NotificationEvent{{
			ScriptHash: h,
			Name:       "Entered",
			Item: stackitem.NewArray([]stackitem.Item{
				stackitem.NewByteArray(caller.BytesBE()),
				stackitem.NewBigInteger(value),
			}),
		}},
	}, nil
}

// credit adds amount to the account balance, c.lock must be held (or the
// chain must not be shared yet).
func (c *Chain) credit(account util.Uint160, amount *big.Int) {
	b, ok := c.balances[account]
	if !ok {
		b = new(big.Int)
		c.balances[account] = b
	}
	b.Add(b, amount)
}

func (c *Chain) nextTx() util.Uint256 {
	c.txs++
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], c.txs)
	return hash.Sha256(b[:])
}

func read(l *ledger.Ledger, method string) (*chain.Result, error) {
	var itm stackitem.Item
	switch method {
	case "getPlayers":
		players := l.Players()
		items := make([]stackitem.Item, len(players))
		for i := range players {
			items[i] = stackitem.NewByteArray(players[i].BytesBE())
		}
		itm = stackitem.NewArray(items)
	case "getManager":
		itm = stackitem.NewByteArray(l.Manager().BytesBE())
	case "getEntryFee":
		itm = stackitem.NewBigInteger(l.EntryFee())
	case "getRound":
		itm = stackitem.NewBigInteger(new(big.Int).SetUint64(l.Round()))
	default:
		return nil, fmt.Errorf("method %s is not supported by in-memory chain", method)
	}
	return &chain.Result{Stack: []stackitem.Item{itm}}, nil
}

func parseDeployArgs(sender util.Uint160, args []any) (util.Uint160, *big.Int, error) {
	manager, fee := sender, big.NewInt(ledger.DefaultEntryFee)
	if len(args) == 0 {
		return manager, fee, nil
	}
	if len(args) != 2 {
		return manager, nil, errors.New("invalid deployment arguments")
	}
	switch m := args[0].(type) {
	case nil:
	case util.Uint160:
		manager = m
	default:
		return manager, nil, fmt.Errorf("invalid manager: %T", m)
	}
	switch f := args[1].(type) {
	case nil:
	case *big.Int:
		fee = f
	case int:
		fee = big.NewInt(int64(f))
	case int64:
		fee = big.NewInt(f)
	default:
		return manager, nil, fmt.Errorf("invalid entry fee: %T", f)
	}
	if fee.Sign() < 0 {
		return manager, nil, errors.New("negative entry fee")
	}
	return manager, fee, nil
}
