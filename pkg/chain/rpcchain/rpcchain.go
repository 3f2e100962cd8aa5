/*
Package rpcchain provides chain.Client working with a remote node via RPC.

Every account is served by its own actor. State-changing calls are test-invoked
first so that a FAULT is reported with its exception without spending GAS,
then the transaction is sent and awaited.
*/
package rpcchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/core/native/nativehashes"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/neorpc/result"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/actor"
	"github.com/nspcc-dev/neo-go/pkg/rpcclient/unwrap"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-go/pkg/wallet"
	"github.com/nspcc-dev/neo-lottery/pkg/chain"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
	"go.uber.org/zap"
)

// Actor is the part of actor.Actor used by Chain.
type Actor interface {
	Call(contract util.Uint160, operation string, params ...any) (*result.Invoke, error)
	SendCall(contract util.Uint160, method string, params ...any) (util.Uint256, uint32, error)
	WaitAny(ctx context.Context, vub uint32, hashes ...util.Uint256) (*state.AppExecResult, error)
	Sender() util.Uint160
}

// Chain is an RPC-based chain.Client.
type Chain struct {
	log    *zap.Logger
	sender util.Uint160
	actors map[util.Uint160]Actor
	client *rpcclient.Client
}

var _ chain.Client = (*Chain)(nil)

// New creates a client using the given actors, the first one is the default.
func New(log *zap.Logger, actors ...Actor) (*Chain, error) {
	if len(actors) == 0 {
		return nil, errors.New("no accounts")
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Chain{
		log:    log,
		sender: actors[0].Sender(),
		actors: make(map[util.Uint160]Actor, len(actors)),
	}
	for _, a := range actors {
		c.actors[a.Sender()] = a
	}
	return c, nil
}

// Dial connects to the RPC node and creates an actor for every account. The
// accounts must be decrypted.
func Dial(ctx context.Context, endpoint string, timeout time.Duration, log *zap.Logger, accounts ...*wallet.Account) (*Chain, error) {
	cl, err := rpcclient.New(ctx, endpoint, rpcclient.Options{
		DialTimeout:    timeout,
		RequestTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create RPC client: %w", err)
	}
	if err := cl.Init(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("failed to init RPC client: %w", err)
	}

	actors := make([]Actor, 0, len(accounts))
	for _, acc := range accounts {
		a, err := actor.NewSimple(cl, acc)
		if err != nil {
			cl.Close()
			return nil, fmt.Errorf("can't create actor for %s: %w", acc.Address, err)
		}
		actors = append(actors, a)
	}
	c, err := New(log, actors...)
	if err != nil {
		cl.Close()
		return nil, err
	}
	c.client = cl
	return c, nil
}

// Close closes the underlying RPC client (if any).
func (c *Chain) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Sender implements chain.Client.
func (c *Chain) Sender() util.Uint160 {
	return c.sender
}

// Deploy implements chain.Client.
func (c *Chain) Deploy(ctx context.Context, art *compile.Artifact, args ...any) (util.Uint160, error) {
	ne, m, err := art.Bytes()
	if err != nil {
		return util.Uint160{}, err
	}
	a := c.actors[c.sender]
	aer, err := c.send(ctx, a, nativehashes.Management, "deploy", ne, m, chain.DeployData(args))
	if err != nil {
		return util.Uint160{}, fmt.Errorf("deployment failed: %w", err)
	}
	h := art.Hash(a.Sender())
	c.log.Info("contract deployed",
		zap.String("name", art.Manifest.Name),
		zap.Stringer("hash", h),
		zap.Stringer("tx", aer.Container),
		zap.Int64("gas", aer.GasConsumed))
	return h, nil
}

// Call implements chain.Client.
func (c *Chain) Call(ctx context.Context, contract util.Uint160, method string, opts chain.CallOpts, args ...any) (*chain.Result, error) {
	caller := opts.Caller
	if caller.Equals(util.Uint160{}) {
		caller = c.sender
	}
	a, ok := c.actors[caller]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownAccount, caller.StringLE())
	}

	var (
		aer *state.AppExecResult
		err error
	)
	if opts.Value != nil {
		aer, err = c.send(ctx, a, nativehashes.Gas, "transfer", caller, contract, opts.Value, method)
	} else {
		aer, err = c.send(ctx, a, contract, method, args...)
	}
	if err != nil {
		return nil, err
	}
	if opts.Value != nil {
		if len(aer.Stack) == 0 {
			return nil, fmt.Errorf("%w: no result", chain.ErrTransferFailed)
		}
		if ok, err := aer.Stack[0].TryBool(); err != nil || !ok {
			return nil, fmt.Errorf("%w: %s to %s", chain.ErrTransferFailed, opts.Value, contract.StringLE())
		}
	}
	return &chain.Result{
		Tx:          aer.Container,
		Stack:       aer.Stack,
		GasConsumed: aer.GasConsumed,
		Events:      aer.Events,
	}, nil
}

// Read implements chain.Client.
func (c *Chain) Read(ctx context.Context, contract util.Uint160, method string, args ...any) (*chain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := c.actors[c.sender].Call(contract, method, args...)
	if err != nil {
		return nil, fmt.Errorf("invocation failed: %w", err)
	}
	if res.State != vmstate.Halt.String() {
		return nil, chain.NewFaultError(res.FaultException, nil)
	}
	return &chain.Result{
		Stack:       res.Stack,
		GasConsumed: res.GasConsumed,
		Events:      res.Notifications,
	}, nil
}

// Balance implements chain.Client.
func (c *Chain) Balance(ctx context.Context, account util.Uint160) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return unwrap.BigInt(c.actors[c.sender].Call(nativehashes.Gas, "balanceOf", account))
}

// send test-invokes the method and then sends a transaction and awaits it.
func (c *Chain) send(ctx context.Context, a Actor, contract util.Uint160, method string, params ...any) (*state.AppExecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := a.Call(contract, method, params...)
	if err != nil {
		return nil, fmt.Errorf("test invocation failed: %w", err)
	}
	if res.State != vmstate.Halt.String() {
		return nil, chain.NewFaultError(res.FaultException, nil)
	}

	h, vub, err := a.SendCall(contract, method, params...)
	c.log.Debug("transaction sent",
		zap.Stringer("contract", contract),
		zap.String("method", method),
		zap.Stringer("tx", h),
		zap.Uint32("vub", vub),
		zap.Error(err))
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	aer, err := a.WaitAny(ctx, vub, h)
	if err != nil {
		return nil, fmt.Errorf("transaction %s failed: %w", h.StringLE(), err)
	}
	if aer.VMState != vmstate.Halt {
		return nil, chain.NewFaultError(aer.FaultException, nil)
	}
	return aer, nil
}
