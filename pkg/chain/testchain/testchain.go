/*
Package testchain provides chain.Client over an in-process NeoGo blockchain.

It's a thin layer over neotest: every call is a real transaction put into a
new block, so contracts are executed by the VM with all native contracts,
fees and witness checks in place.
*/
package testchain

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	neochain "github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neo-lottery/pkg/chain"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
)

// Chain is an in-process chain.Client. The default account is the committee
// (which is also the only validator).
type Chain struct {
	t       testing.TB
	e       *neotest.Executor
	gasHash util.Uint160
	signers map[util.Uint160]neotest.Signer
}

var _ chain.Client = (*Chain)(nil)

// New creates a single-node chain for the test.
func New(t testing.TB) *Chain {
	bc, acc := neochain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, acc, acc)
	c := &Chain{
		t:       t,
		e:       e,
		gasHash: e.NativeHash(t, nativenames.Gas),
		signers: make(map[util.Uint160]neotest.Signer),
	}
	c.signers[e.Committee.ScriptHash()] = e.Committee
	return c
}

// Executor returns the underlying neotest executor.
func (c *Chain) Executor() *neotest.Executor {
	return c.e
}

// NewAccount creates an account funded with 100 GAS that can be used as
// CallOpts.Caller.
func (c *Chain) NewAccount() util.Uint160 {
	s := c.e.NewAccount(c.t)
	c.signers[s.ScriptHash()] = s
	return s.ScriptHash()
}

// Sender implements chain.Client.
func (c *Chain) Sender() util.Uint160 {
	return c.e.Validator.ScriptHash()
}

// Deploy implements chain.Client.
func (c *Chain) Deploy(_ context.Context, art *compile.Artifact, args ...any) (util.Uint160, error) {
	ctr := &neotest.Contract{
		Hash:     art.Hash(c.Sender()),
		NEF:      art.NEF,
		Manifest: art.Manifest,
	}
	tx := c.e.NewDeployTx(c.t, ctr, chain.DeployData(args))
	if _, err := c.execute(tx); err != nil {
		return util.Uint160{}, err
	}
	return ctr.Hash, nil
}

// Call implements chain.Client.
func (c *Chain) Call(_ context.Context, contract util.Uint160, method string, opts chain.CallOpts, args ...any) (*chain.Result, error) {
	caller := opts.Caller
	if caller.Equals(util.Uint160{}) {
		caller = c.e.Committee.ScriptHash()
	}
	s, ok := c.signers[caller]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownAccount, caller.StringLE())
	}

	var tx *transaction.Transaction
	if opts.Value != nil {
		tx = c.e.NewTx(c.t, []neotest.Signer{s}, c.gasHash, "transfer", caller, contract, opts.Value, method)
	} else {
		tx = c.e.NewTx(c.t, []neotest.Signer{s}, contract, method, args...)
	}
	aer, err := c.execute(tx)
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
		Tx:          tx.Hash(),
		Stack:       aer.Stack,
		GasConsumed: aer.GasConsumed,
		Events:      aer.Events,
	}, nil
}

// Read implements chain.Client.
func (c *Chain) Read(_ context.Context, contract util.Uint160, method string, args ...any) (*chain.Result, error) {
	if c.e.Chain.GetContractState(contract) == nil {
		return nil, fmt.Errorf("%w: %s", chain.ErrUnknownContract, contract.StringLE())
	}
	stack, err := c.e.CommitteeInvoker(contract).TestInvoke(c.t, method, args...)
	if err != nil {
		return nil, chain.NewFaultError(err.Error(), nil)
	}
	return &chain.Result{Stack: stack.ToArray()}, nil
}

// Balance implements chain.Client.
func (c *Chain) Balance(_ context.Context, account util.Uint160) (*big.Int, error) {
	return c.e.Chain.GetUtilityTokenBalance(account), nil
}

func (c *Chain) execute(tx *transaction.Transaction) (*state.AppExecResult, error) {
	c.e.AddNewBlock(c.t, tx)
	aer := c.e.GetTxExecResult(c.t, tx.Hash())
	if aer.VMState != vmstate.Halt {
		return nil, chain.NewFaultError(aer.FaultException, nil)
	}
	return aer, nil
}
