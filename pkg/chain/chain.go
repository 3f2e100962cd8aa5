/*
Package chain defines the blockchain client capability used to deploy and
drive contracts.

A Client deploys compiled artifacts, sends state-changing calls, performs
read-only calls and reports account GAS balances. Implementations live in the
subpackages: memchain (in-memory ledger), testchain (in-process NeoGo chain)
and rpcchain (remote node).
*/
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/state"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
)

// CallOpts are options of a state-changing call.
type CallOpts struct {
	// Caller is the account signing the call, zero value means the client's
	// default account.
	Caller util.Uint160
	// Value makes the call payable: GAS in the given amount is transferred
	// from Caller to the contract with the method name as transfer data.
	Value *big.Int
}

// Result is an outcome of a successful call.
type Result struct {
	// Tx is the transaction hash, it's zero for read-only calls.
	Tx          util.Uint256
	Stack       []stackitem.Item
	GasConsumed int64
	Events      []state.NotificationEvent
}

// Client is a blockchain client able to deploy and call contracts.
type Client interface {
	// Deploy deploys the artifact from the default account. args are passed
	// to the contract's _deploy method as an array (nil if there are none).
	Deploy(ctx context.Context, art *compile.Artifact, args ...any) (util.Uint160, error)
	// Call sends a transaction invoking method and waits for its execution.
	// FAULTed transactions return ErrFault.
	Call(ctx context.Context, contract util.Uint160, method string, opts CallOpts, args ...any) (*Result, error)
	// Read performs a test invocation that is never persisted.
	Read(ctx context.Context, contract util.Uint160, method string, args ...any) (*Result, error)
	// Balance returns GAS balance of the account.
	Balance(ctx context.Context, account util.Uint160) (*big.Int, error)
	// Sender returns the default account.
	Sender() util.Uint160
}

// DeployData converts Deploy arguments into the _deploy data parameter.
func DeployData(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args
}

// Item returns the i-th result stack item.
func (r *Result) Item(i int) (stackitem.Item, error) {
	if i < 0 || i >= len(r.Stack) {
		return nil, fmt.Errorf("result stack has %d items, no item %d", len(r.Stack), i)
	}
	return r.Stack[i], nil
}

// Uint160 decodes the first result item as a hash.
func (r *Result) Uint160() (util.Uint160, error) {
	itm, err := r.Item(0)
	if err != nil {
		return util.Uint160{}, err
	}
	return ItemToUint160(itm)
}

// BigInt decodes the first result item as an integer.
func (r *Result) BigInt() (*big.Int, error) {
	itm, err := r.Item(0)
	if err != nil {
		return nil, err
	}
	return itm.TryInteger()
}

// Uint160Array decodes the first result item as an array of hashes.
func (r *Result) Uint160Array() ([]util.Uint160, error) {
	itm, err := r.Item(0)
	if err != nil {
		return nil, err
	}
	arr, ok := itm.Value().([]stackitem.Item)
	if !ok {
		return nil, fmt.Errorf("not an array: %s", itm.Type())
	}
	res := make([]util.Uint160, len(arr))
	for i := range arr {
		res[i], err = ItemToUint160(arr[i])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return res, nil
}

// Event returns parameters of the first event with the given name emitted
// by the contract or nil.
func (r *Result) Event(contract util.Uint160, name string) []stackitem.Item {
	for _, ev := range r.Events {
		if ev.ScriptHash.Equals(contract) && ev.Name == name && ev.Item != nil {
			return ev.Item.Value().([]stackitem.Item)
		}
	}
	return nil
}

// ItemToUint160 decodes a byte string item as a hash.
func ItemToUint160(itm stackitem.Item) (util.Uint160, error) {
	b, err := itm.TryBytes()
	if err != nil {
		return util.Uint160{}, err
	}
	return util.Uint160DecodeBytesBE(b)
}
