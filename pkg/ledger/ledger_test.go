package ledger

import (
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/stretchr/testify/require"
)

var (
	manager = util.Uint160{0xaa}
	alice   = util.Uint160{1}
	bob     = util.Uint160{2}
	carol   = util.Uint160{3}
)

func newTestLedger(t *testing.T, rnd Randomness, opts ...Option) *Ledger {
	l, err := New(manager, big.NewInt(DefaultEntryFee), rnd, opts...)
	require.NoError(t, err)
	return l
}

func gas(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_0000_0000))
}

func TestNew(t *testing.T) {
	_, err := New(manager, nil, CryptoRandomness{})
	require.Error(t, err)
	_, err = New(manager, big.NewInt(-1), CryptoRandomness{})
	require.Error(t, err)
	_, err = New(manager, big.NewInt(DefaultEntryFee), nil)
	require.Error(t, err)

	fee := big.NewInt(10)
	l, err := New(manager, fee, CryptoRandomness{})
	require.NoError(t, err)
	fee.SetInt64(100)
	require.Equal(t, int64(10), l.EntryFee().Int64())
	require.Equal(t, manager, l.Manager())
	require.Empty(t, l.Players())
	require.Equal(t, 0, l.Balance().Sign())
	require.Equal(t, uint64(0), l.Round())
}

func TestJoin(t *testing.T) {
	t.Run("one account", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		require.NoError(t, l.Join(alice, gas(2)))
		require.Equal(t, []util.Uint160{alice}, l.Players())
		require.Equal(t, gas(2), l.Balance())
	})
	t.Run("multiple accounts in order", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		for _, p := range []util.Uint160{alice, bob, carol} {
			require.NoError(t, l.Join(p, gas(2)))
		}
		require.Equal(t, []util.Uint160{alice, bob, carol}, l.Players())
		require.Equal(t, gas(6), l.Balance())
	})
	t.Run("duplicates", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		require.NoError(t, l.Join(alice, big.NewInt(DefaultEntryFee)))
		require.NoError(t, l.Join(alice, big.NewInt(DefaultEntryFee)))
		require.Equal(t, []util.Uint160{alice, alice}, l.Players())
	})
	t.Run("below fee", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		require.ErrorIs(t, l.Join(alice, big.NewInt(0)), ErrEntryFeeTooLow)
		require.ErrorIs(t, l.Join(alice, new(big.Int).Sub(big.NewInt(DefaultEntryFee), big.NewInt(1))), ErrEntryFeeTooLow)
		require.ErrorIs(t, l.Join(alice, nil), ErrEntryFeeTooLow)
		require.Empty(t, l.Players())
		require.Equal(t, 0, l.Balance().Sign())
	})
	t.Run("exactly fee", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		require.NoError(t, l.Join(alice, big.NewInt(DefaultEntryFee)))
	})
	t.Run("zero fee", func(t *testing.T) {
		l, err := New(manager, big.NewInt(0), CryptoRandomness{})
		require.NoError(t, err)
		require.NoError(t, l.Join(alice, big.NewInt(0)))
	})
	t.Run("players copy", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		require.NoError(t, l.Join(alice, big.NewInt(DefaultEntryFee)))
		ps := l.Players()
		ps[0] = bob
		require.Equal(t, []util.Uint160{alice}, l.Players())
	})
}

func TestPickWinner(t *testing.T) {
	t.Run("not a manager", func(t *testing.T) {
		l := newTestLedger(t, NewFixedRandomness(0))
		require.NoError(t, l.Join(alice, gas(2)))
		_, err := l.PickWinner(alice)
		require.ErrorIs(t, err, ErrNotManager)
		require.Equal(t, []util.Uint160{alice}, l.Players())
		require.Equal(t, gas(2), l.Balance())
		require.Equal(t, uint64(0), l.Round())
	})
	t.Run("no players", func(t *testing.T) {
		l := newTestLedger(t, NewFixedRandomness(0))
		_, err := l.PickWinner(manager)
		require.ErrorIs(t, err, ErrNoPlayers)
		require.Equal(t, uint64(0), l.Round())
	})
	t.Run("pays the winner and resets players", func(t *testing.T) {
		now := time.Unix(1700000000, 0)
		var paid []Settlement
		l := newTestLedger(t, NewFixedRandomness(1),
			WithPayout(func(s Settlement) { paid = append(paid, s) }),
			WithClock(func() time.Time { return now }))
		require.NoError(t, l.Join(alice, gas(1)))
		require.NoError(t, l.Join(bob, gas(2)))
		require.NoError(t, l.Join(carol, gas(3)))

		s, err := l.PickWinner(manager)
		require.NoError(t, err)
		require.Equal(t, bob, s.Winner)
		require.Equal(t, 1, s.Index)
		require.Equal(t, gas(6), s.Prize)
		require.Equal(t, 3, s.Players)
		require.Equal(t, uint64(1), s.Round)
		require.Equal(t, now, s.Time)
		require.NotEqual(t, [16]byte{}, [16]byte(s.ID))

		require.Empty(t, l.Players())
		require.Equal(t, 0, l.Balance().Sign())
		require.Equal(t, uint64(1), l.Round())
		require.Equal(t, []Settlement{s}, paid)
	})
	t.Run("single player always wins", func(t *testing.T) {
		l := newTestLedger(t, CryptoRandomness{})
		require.NoError(t, l.Join(alice, gas(2)))
		s, err := l.PickWinner(manager)
		require.NoError(t, err)
		require.Equal(t, alice, s.Winner)
		require.Equal(t, gas(2), s.Prize)
	})
	t.Run("index out of range", func(t *testing.T) {
		l := newTestLedger(t, NewFixedRandomness(5))
		require.NoError(t, l.Join(alice, gas(2)))
		_, err := l.PickWinner(manager)
		require.ErrorIs(t, err, ErrInvalidIndex)
		require.Equal(t, []util.Uint160{alice}, l.Players())
		require.Equal(t, gas(2), l.Balance())
	})
	t.Run("randomness failure", func(t *testing.T) {
		l := newTestLedger(t, NewFixedRandomness())
		require.NoError(t, l.Join(alice, gas(2)))
		_, err := l.PickWinner(manager)
		require.ErrorIs(t, err, ErrExhausted)
		require.Equal(t, []util.Uint160{alice}, l.Players())
	})
	t.Run("next round", func(t *testing.T) {
		l := newTestLedger(t, NewFixedRandomness(0, 0))
		require.NoError(t, l.Join(alice, gas(1)))
		_, err := l.PickWinner(manager)
		require.NoError(t, err)

		require.NoError(t, l.Join(bob, gas(1)))
		require.Equal(t, []util.Uint160{bob}, l.Players())
		s, err := l.PickWinner(manager)
		require.NoError(t, err)
		require.Equal(t, bob, s.Winner)
		require.Equal(t, gas(1), s.Prize)
		require.Equal(t, uint64(2), s.Round)
	})
}

func TestConcurrentJoin(t *testing.T) {
	const n = 100

	l := newTestLedger(t, CryptoRandomness{})
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Join(util.Uint160{byte(i)}, big.NewInt(DefaultEntryFee)))
		}()
	}
	wg.Wait()

	require.Len(t, l.Players(), n)
	require.Equal(t, new(big.Int).Mul(big.NewInt(DefaultEntryFee), big.NewInt(n)), l.Balance())

	s, err := l.PickWinner(manager)
	require.NoError(t, err)
	require.Equal(t, n, s.Players)
	require.Empty(t, l.Players())
}
