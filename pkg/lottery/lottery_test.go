package lottery

import (
	"context"
	"math/big"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-lottery/pkg/chain"
	"github.com/nspcc-dev/neo-lottery/pkg/chain/memchain"
	"github.com/nspcc-dev/neo-lottery/pkg/chain/testchain"
	"github.com/nspcc-dev/neo-lottery/pkg/compile"
	"github.com/nspcc-dev/neo-lottery/pkg/history"
	"github.com/nspcc-dev/neo-lottery/pkg/ledger"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func gas(v int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(v), big.NewInt(1_0000_0000))
}

func compileLottery(t *testing.T) *compile.Artifact {
	s, err := compile.NewService(zaptest.NewLogger(t), 1)
	require.NoError(t, err)
	s.Register("lottery", "../../contract", "../../contract/lottery.yml")
	a, err := s.Compile("lottery")
	require.NoError(t, err)
	return a
}

// backend is a chain with a set of funded player accounts.
type backend struct {
	client  chain.Client
	players []util.Uint160
}

func newMemBackend(t *testing.T, art *compile.Artifact, idx ...int) backend {
	players := []util.Uint160{{1}, {2}, {3}}
	opts := []memchain.Option{memchain.WithLogger(zaptest.NewLogger(t))}
	if len(idx) > 0 {
		opts = append(opts, memchain.WithRandomness(ledger.NewFixedRandomness(idx...)))
	}
	for _, p := range players {
		opts = append(opts, memchain.WithBalance(p, gas(100)))
	}
	return backend{client: memchain.New(util.Uint160{0xaa}, opts...), players: players}
}

func newTestBackend(t *testing.T) backend {
	c := testchain.New(t)
	players := make([]util.Uint160, 3)
	for i := range players {
		players[i] = c.NewAccount()
	}
	return backend{client: c, players: players}
}

func forEachBackend(t *testing.T, f func(t *testing.T, b backend, art *compile.Artifact)) {
	art := compileLottery(t)
	t.Run("memchain", func(t *testing.T) { f(t, newMemBackend(t, art), art) })
	t.Run("testchain", func(t *testing.T) { f(t, newTestBackend(t), art) })
}

func TestLottery(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, b backend, art *compile.Artifact) {
		store := history.New(history.NewMemoryStore(), zaptest.NewLogger(t))
		l, err := Deploy(ctx, b.client, art, DeployParams{}, WithLogger(zaptest.NewLogger(t)), WithHistory(store), WithMetrics())
		require.NoError(t, err)
		require.Equal(t, art.Hash(b.client.Sender()), l.Hash())

		manager, err := l.Manager(ctx)
		require.NoError(t, err)
		require.Equal(t, b.client.Sender(), manager)

		fee, err := l.EntryFee(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(ledger.DefaultEntryFee), fee.Int64())

		t.Run("one account enters", func(t *testing.T) {
			_, err := l.Enter(ctx, b.players[0], gas(2))
			require.NoError(t, err)
			players, err := l.Players(ctx)
			require.NoError(t, err)
			require.Equal(t, b.players[:1], players)
		})
		t.Run("more accounts enter in order", func(t *testing.T) {
			for _, p := range b.players[1:] {
				_, err := l.Enter(ctx, p, gas(2))
				require.NoError(t, err)
			}
			players, err := l.Players(ctx)
			require.NoError(t, err)
			require.Equal(t, b.players, players)

			balance, err := l.Balance(ctx)
			require.NoError(t, err)
			require.Equal(t, 0, gas(6).Cmp(balance))
		})
		t.Run("zero amount", func(t *testing.T) {
			_, err := l.Enter(ctx, b.players[0], big.NewInt(0))
			require.ErrorIs(t, err, ledger.ErrEntryFeeTooLow)
			require.ErrorIs(t, err, chain.ErrFault)
		})
		t.Run("not a manager", func(t *testing.T) {
			before, err := l.Balance(ctx)
			require.NoError(t, err)

			_, err = l.PickWinner(ctx, b.players[0])
			require.ErrorIs(t, err, ledger.ErrNotManager)

			players, err := l.Players(ctx)
			require.NoError(t, err)
			require.Len(t, players, 3)
			after, err := l.Balance(ctx)
			require.NoError(t, err)
			require.Equal(t, 0, before.Cmp(after))
		})
		t.Run("winner gets the prize", func(t *testing.T) {
			before := make(map[util.Uint160]*big.Int)
			for _, p := range b.players {
				before[p], err = b.client.Balance(ctx, p)
				require.NoError(t, err)
			}

			r, err := l.PickWinner(ctx, manager)
			require.NoError(t, err)
			require.Contains(t, b.players, r.Winner)
			require.Equal(t, b.players[r.Index], r.Winner)
			require.Equal(t, 3, r.Players)
			require.Equal(t, uint64(1), r.Round)
			require.Equal(t, 0, gas(6).Cmp(r.Prize))

			after, err := b.client.Balance(ctx, r.Winner)
			require.NoError(t, err)
			diff := new(big.Int).Sub(after, before[r.Winner])
			require.True(t, diff.Cmp(big.NewInt(5_8000_0000)) > 0, "balance difference: %s", diff)

			players, err := l.Players(ctx)
			require.NoError(t, err)
			require.Empty(t, players)

			round, err := l.Round(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(1), round)

			balance, err := l.Balance(ctx)
			require.NoError(t, err)
			require.Equal(t, 0, balance.Sign())

			records, err := l.History()
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.Equal(t, r.Winner, records[0].Winner)
			require.Equal(t, l.Hash(), records[0].Contract)
		})
		t.Run("no players", func(t *testing.T) {
			_, err := l.PickWinner(ctx, manager)
			require.ErrorIs(t, err, ledger.ErrNoPlayers)
		})
	})
}

func TestLottery_DeployParams(t *testing.T) {
	ctx := context.Background()

	forEachBackend(t, func(t *testing.T, b backend, art *compile.Artifact) {
		manager := b.players[2]
		l, err := Deploy(ctx, b.client, art, DeployParams{Manager: &manager, EntryFee: gas(1)})
		require.NoError(t, err)

		m, err := l.Manager(ctx)
		require.NoError(t, err)
		require.Equal(t, manager, m)

		_, err = l.Enter(ctx, b.players[0], new(big.Int).Sub(gas(1), big.NewInt(1)))
		require.ErrorIs(t, err, ledger.ErrEntryFeeTooLow)
		_, err = l.Enter(ctx, b.players[0], gas(1))
		require.NoError(t, err)

		_, err = l.PickWinner(ctx, b.client.Sender())
		require.ErrorIs(t, err, ledger.ErrNotManager)
		r, err := l.PickWinner(ctx, manager)
		require.NoError(t, err)
		require.Equal(t, b.players[0], r.Winner)
		require.Equal(t, 0, r.Index)

		_, err = l.History()
		require.ErrorIs(t, err, ErrNoHistory)
	})
}

func TestLottery_DeterministicWinner(t *testing.T) {
	ctx := context.Background()
	art := compileLottery(t)
	b := newMemBackend(t, art, 2, 0)

	l, err := Deploy(ctx, b.client, art, DeployParams{})
	require.NoError(t, err)
	for _, p := range b.players {
		_, err := l.Enter(ctx, p, gas(1))
		require.NoError(t, err)
	}
	r, err := l.PickWinner(ctx, b.client.Sender())
	require.NoError(t, err)
	require.Equal(t, b.players[2], r.Winner)
	require.Equal(t, 2, r.Index)

	_, err = l.Enter(ctx, b.players[1], gas(1))
	require.NoError(t, err)
	r, err = l.PickWinner(ctx, b.client.Sender())
	require.NoError(t, err)
	require.Equal(t, b.players[1], r.Winner)
	require.Equal(t, uint64(2), r.Round)
}

func TestLottery_RepeatedEntries(t *testing.T) {
	ctx := context.Background()
	art := compileLottery(t)
	b := newMemBackend(t, art, 1)
	store := history.New(history.NewMemoryStore(), zaptest.NewLogger(t))

	l, err := Deploy(ctx, b.client, art, DeployParams{}, WithHistory(store))
	require.NoError(t, err)
	for range 2 {
		_, err := l.Enter(ctx, b.players[0], gas(1))
		require.NoError(t, err)
	}
	r, err := l.PickWinner(ctx, b.client.Sender())
	require.NoError(t, err)
	require.Equal(t, b.players[0], r.Winner)
	require.Equal(t, 1, r.Index)
	require.Equal(t, 2, r.Players)

	records, err := l.History()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, records[0].Index)
}

func TestMapError(t *testing.T) {
	err := mapError(chain.NewFaultError("at instruction 10 (THROW): unhandled exception: \"no players\"", nil))
	require.ErrorIs(t, err, ledger.ErrNoPlayers)
	require.ErrorIs(t, err, chain.ErrFault)

	err = mapError(chain.NewFaultError("something else", nil))
	require.ErrorIs(t, err, chain.ErrFault)
	require.NotErrorIs(t, err, ledger.ErrNoPlayers)

	require.ErrorIs(t, mapError(ledger.ErrNotManager), ledger.ErrNotManager)
	require.Equal(t, "other", reason(chain.ErrUnknownAccount))
}
