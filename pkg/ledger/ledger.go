/*
Package ledger implements the lottery state machine natively in Go.

A Ledger keeps the manager, the entry fee, the ordered list of participants
and the accumulated balance. Players join by paying at least the entry fee,
the manager settles the round by picking a winner who receives the whole
balance. Winner selection is delegated to an injected Randomness provider so
that the ledger can be driven deterministically in tests.
*/
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// DefaultEntryFee is the default entry threshold, 0.01 GAS.
const DefaultEntryFee = 1_000_000

var (
	// ErrEntryFeeTooLow is returned when a join amount is below the entry fee.
	ErrEntryFeeTooLow = errors.New("entry fee is too low")
	// ErrNotManager is returned when somebody other than the manager tries
	// to settle the lottery.
	ErrNotManager = errors.New("only manager can pick a winner")
	// ErrNoPlayers is returned on an attempt to settle an empty lottery.
	ErrNoPlayers = errors.New("no players")
	// ErrInvalidIndex is returned when the randomness provider returns an
	// index outside of the participant list.
	ErrInvalidIndex = errors.New("winner index is out of range")
)

// Settlement describes a single successful PickWinner call.
type Settlement struct {
	ID      uuid.UUID    `json:"id"`
	Round   uint64       `json:"round"`
	Winner  util.Uint160 `json:"winner"`
	Index   int          `json:"index"`
	Prize   *big.Int     `json:"prize"`
	Players int          `json:"players"`
	Time    time.Time    `json:"time"`
}

// Payout receives every settlement after the ledger state is updated.
type Payout func(Settlement)

// Option configures a Ledger.
type Option func(*Ledger)

// WithPayout sets a hook called for every settlement.
func WithPayout(p Payout) Option {
	return func(l *Ledger) {
		l.payout = p
	}
}

// WithClock replaces the time source used to stamp settlements.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger is a lottery ledger. It's safe for concurrent use, all operations
// are serialized.
type Ledger struct {
	manager  util.Uint160
	entryFee *big.Int
	rnd      Randomness
	payout   Payout
	now      func() time.Time

	lock    sync.Mutex
	players []util.Uint160
	balance *big.Int
	round   uint64
}

// New creates an empty ledger managed by manager.
func New(manager util.Uint160, entryFee *big.Int, rnd Randomness, opts ...Option) (*Ledger, error) {
	if entryFee == nil || entryFee.Sign() < 0 {
		return nil, fmt.Errorf("invalid entry fee: %v", entryFee)
	}
	if rnd == nil {
		return nil, errors.New("no randomness provider")
	}
	l := &Ledger{
		manager:  manager,
		entryFee: new(big.Int).Set(entryFee),
		rnd:      rnd,
		now:      time.Now,
		balance:  new(big.Int),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Join registers caller as a participant if amount is not less than the
// entry fee. The same caller may join any number of times.
func (l *Ledger) Join(caller util.Uint160, amount *big.Int) error {
	if amount == nil || amount.Cmp(l.entryFee) < 0 {
		return fmt.Errorf("%w: %v < %s", ErrEntryFeeTooLow, amount, l.entryFee)
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	l.players = append(l.players, caller)
	l.balance.Add(l.balance, amount)
	return nil
}

// Players returns a copy of the participant list in join order.
func (l *Ledger) Players() []util.Uint160 {
	l.lock.Lock()
	defer l.lock.Unlock()
	res := make([]util.Uint160, len(l.players))
	copy(res, l.players)
	return res
}

// PickWinner selects a participant, pays the whole balance to it and starts
// a new round. The state is not changed if an error is returned.
func (l *Ledger) PickWinner(caller util.Uint160) (Settlement, error) {
	if !caller.Equals(l.manager) {
		return Settlement{}, ErrNotManager
	}

	l.lock.Lock()
	n := len(l.players)
	if n == 0 {
		l.lock.Unlock()
		return Settlement{}, ErrNoPlayers
	}
	idx, err := l.rnd.NextIndex(n)
	if err != nil {
		l.lock.Unlock()
		return Settlement{}, fmt.Errorf("failed to pick a winner: %w", err)
	}
	if idx < 0 || idx >= n {
		l.lock.Unlock()
		return Settlement{}, fmt.Errorf("%w: %d of %d", ErrInvalidIndex, idx, n)
	}

	l.round++
	s := Settlement{
		ID:      uuid.New(),
		Round:   l.round,
		Winner:  l.players[idx],
		Index:   idx,
		Prize:   l.balance,
		Players: n,
		Time:    l.now(),
	}
	l.players = nil
	l.balance = new(big.Int)
	l.lock.Unlock()

	if l.payout != nil {
		l.payout(s)
	}
	return s, nil
}

// Balance returns the sum of entries accepted since the last settlement.
func (l *Ledger) Balance() *big.Int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return new(big.Int).Set(l.balance)
}

// Round returns the number of settlements done.
func (l *Ledger) Round() uint64 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.round
}

// Manager returns the manager of the ledger.
func (l *Ledger) Manager() util.Uint160 {
	return l.manager
}

// EntryFee returns the minimum join amount.
func (l *Ledger) EntryFee() *big.Int {
	return new(big.Int).Set(l.entryFee)
}
