/*
Package lottery contains the Lottery smart contract.

Players enter by transferring GAS to the contract (a plain transfer or one
carrying "enter" as data). The manager picks a winner who gets the whole GAS
balance of the contract, then a new round starts with an empty player list.
*/
package lottery

import (
	"github.com/nspcc-dev/neo-go/pkg/interop"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/gas"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/management"
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/runtime"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// DefaultEntryFee is the minimum entry amount (0.01 GAS) used when no fee is
// given at deployment.
const DefaultEntryFee = 1_000_000

// EnterPurpose is the transfer data marking a GAS payment as a lottery entry.
const EnterPurpose = "enter"

// Exception messages.
const (
	ErrEntryFeeTooLow = "entry fee is too low"
	ErrNotManager     = "only manager can pick a winner"
	ErrNoPlayers      = "no players"
)

// Storage keys. Players of the current round are stored one per key, the
// key is PlayerPrefix followed by the decimal entry index.
const (
	managerKey   = "m"
	feeKey       = "f"
	countKey     = "c"
	PlayerPrefix = "p"
	roundKey     = "r"
)

// _deploy stores the manager and the entry fee. data is either nil (the
// transaction sender becomes the manager, the fee is DefaultEntryFee) or
// a two-element array of an optional manager and an optional fee.
func _deploy(data any, isUpdate bool) {
	if isUpdate {
		return
	}

	manager := runtime.GetScriptContainer().Sender
	fee := DefaultEntryFee
	if data != nil {
		args := data.([]any)
		if len(args) != 2 {
			panic("invalid deployment arguments")
		}
		if args[0] != nil {
			manager = args[0].(interop.Hash160)
		}
		if args[1] != nil {
			fee = args[1].(int)
		}
	}
	if len(manager) != interop.Hash160Len {
		panic("invalid manager")
	}
	if fee < 0 {
		panic("negative entry fee")
	}

	ctx := storage.GetContext()
	storage.Put(ctx, managerKey, manager)
	storage.Put(ctx, feeKey, fee)
	storage.Put(ctx, countKey, 0)
	storage.Put(ctx, roundKey, 0)
}

// OnNEP17Payment registers the GAS sender as a player.
func OnNEP17Payment(from interop.Hash160, amount int, data any) {
	if !runtime.GetCallingScriptHash().Equals(gas.Hash) {
		panic("only GAS is accepted")
	}
	if data != nil && data.(string) != EnterPurpose {
		panic("unknown payment purpose")
	}
	if from == nil {
		panic("minted GAS is not an entry")
	}

	ctx := storage.GetContext()
	if amount < storage.Get(ctx, feeKey).(int) {
		panic(ErrEntryFeeTooLow)
	}

	n := storage.Get(ctx, countKey).(int)
	storage.Put(ctx, playerKey(n), from)
	storage.Put(ctx, countKey, n+1)
	runtime.Notify("Entered", from, amount)
}

// GetPlayers returns players of the current round in the order they entered.
func GetPlayers() []interop.Hash160 {
	return getPlayers(storage.GetReadOnlyContext())
}

// GetManager returns the account allowed to pick a winner.
func GetManager() interop.Hash160 {
	return storage.Get(storage.GetReadOnlyContext(), managerKey).(interop.Hash160)
}

// GetEntryFee returns the minimum entry amount.
func GetEntryFee() int {
	return storage.Get(storage.GetReadOnlyContext(), feeKey).(int)
}

// GetRound returns the number of rounds settled so far.
func GetRound() int {
	return storage.Get(storage.GetReadOnlyContext(), roundKey).(int)
}

// PickWinner selects a random player, transfers the whole contract balance to
// it and starts a new round. Only the manager can call it.
func PickWinner() interop.Hash160 {
	ctx := storage.GetContext()
	if !runtime.CheckWitness(storage.Get(ctx, managerKey).(interop.Hash160)) {
		panic(ErrNotManager)
	}

	n := storage.Get(ctx, countKey).(int)
	if n == 0 {
		panic(ErrNoPlayers)
	}
	idx := runtime.GetRandom() % n
	winner := storage.Get(ctx, playerKey(idx)).(interop.Hash160)

	// The list is cleared before the payout, the winner may be a contract.
	for i := 0; i < n; i++ {
		storage.Delete(ctx, playerKey(i))
	}
	storage.Put(ctx, countKey, 0)
	round := storage.Get(ctx, roundKey).(int) + 1
	storage.Put(ctx, roundKey, round)

	self := runtime.GetExecutingScriptHash()
	prize := gas.BalanceOf(self)
	if !gas.Transfer(self, winner, prize, nil) {
		panic("prize transfer failed")
	}
	runtime.Notify("Winner", winner, prize, round, idx, n)
	return winner
}

// Update updates the contract, only the manager can do that.
func Update(nef, manifest []byte) {
	ctx := storage.GetReadOnlyContext()
	if !runtime.CheckWitness(storage.Get(ctx, managerKey).(interop.Hash160)) {
		panic("only manager can update")
	}
	management.Update(nef, manifest)
}

func getPlayers(ctx storage.Context) []interop.Hash160 {
	n := storage.Get(ctx, countKey).(int)
	players := []interop.Hash160{}
	for i := 0; i < n; i++ {
		players = append(players, storage.Get(ctx, playerKey(i)).(interop.Hash160))
	}
	return players
}

func playerKey(i int) string {
	return PlayerPrefix + std.Itoa10(i)
}
