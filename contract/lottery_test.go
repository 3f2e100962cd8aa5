package lottery_test

import (
	"math/big"
	"strconv"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/core/native/nativenames"
	"github.com/nspcc-dev/neo-go/pkg/neotest"
	"github.com/nspcc-dev/neo-go/pkg/neotest/chain"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	lottery "github.com/nspcc-dev/neo-lottery/contract"
	"github.com/stretchr/testify/require"
)

func newLotteryClient(t *testing.T, data any) *neotest.ContractInvoker {
	bc, acc := chain.NewSingle(t)
	e := neotest.NewExecutor(t, bc, acc, acc)
	ctr := neotest.CompileFile(t, e.CommitteeHash, ".", "lottery.yml")
	e.DeployContract(t, ctr, data)

	return e.CommitteeInvoker(ctr.Hash)
}

// enter transfers amount of GAS from the player to the lottery.
func enter(t *testing.T, c *neotest.ContractInvoker, player neotest.Signer, amount int64) util.Uint256 {
	gasInvoker := c.NewInvoker(c.NativeHash(t, nativenames.Gas), player)
	return gasInvoker.Invoke(t, true, "transfer", player.ScriptHash(), c.Hash, amount, lottery.EnterPurpose)
}

func checkPlayers(t *testing.T, c *neotest.ContractInvoker, expected ...util.Uint160) {
	s, err := c.TestInvoke(t, "getPlayers")
	require.NoError(t, err)
	require.Equal(t, 1, s.Len())

	items, ok := s.Pop().Item().Value().([]stackitem.Item)
	require.True(t, ok)
	require.Equal(t, len(expected), len(items))
	for i := range items {
		b, err := items[i].TryBytes()
		require.NoError(t, err)
		actual, err := util.Uint160DecodeBytesBE(b)
		require.NoError(t, err)
		require.Equal(t, expected[i], actual)
	}
}

func TestLottery_Deploy(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		c.Invoke(t, c.CommitteeHash.BytesBE(), "getManager")
		c.Invoke(t, lottery.DefaultEntryFee, "getEntryFee")
		c.Invoke(t, 0, "getRound")
		checkPlayers(t, c)
	})
	t.Run("custom manager and fee", func(t *testing.T) {
		bc, acc := chain.NewSingle(t)
		e := neotest.NewExecutor(t, bc, acc, acc)
		manager := e.NewAccount(t)
		ctr := neotest.CompileFile(t, e.CommitteeHash, ".", "lottery.yml")
		e.DeployContract(t, ctr, []any{manager.ScriptHash(), 5_0000_0000})

		c := e.CommitteeInvoker(ctr.Hash)
		c.Invoke(t, manager.ScriptHash().BytesBE(), "getManager")
		c.Invoke(t, 5_0000_0000, "getEntryFee")
	})
	t.Run("negative fee", func(t *testing.T) {
		bc, acc := chain.NewSingle(t)
		e := neotest.NewExecutor(t, bc, acc, acc)
		ctr := neotest.CompileFile(t, e.CommitteeHash, ".", "lottery.yml")
		tx := e.NewDeployTx(t, ctr, []any{nil, -1})
		e.AddNewBlock(t, tx)
		e.CheckFault(t, tx.Hash(), "negative entry fee")
	})
}

func TestLottery_Enter(t *testing.T) {
	c := newLotteryClient(t, nil)

	t.Run("one account", func(t *testing.T) {
		player := c.NewAccount(t)
		h := enter(t, c, player, 2_0000_0000)
		checkPlayers(t, c, player.ScriptHash())

		aer := c.GetTxExecResult(t, h)
		var found bool
		for _, ev := range aer.Events {
			if ev.ScriptHash.Equals(c.Hash) && ev.Name == "Entered" {
				found = true
			}
		}
		require.True(t, found)
	})
	t.Run("multiple accounts in order", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		players := make([]util.Uint160, 3)
		for i := range players {
			acc := c.NewAccount(t)
			enter(t, c, acc, 2_0000_0000)
			players[i] = acc.ScriptHash()
		}
		checkPlayers(t, c, players...)
	})
	t.Run("same account twice", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		enter(t, c, acc, lottery.DefaultEntryFee)
		enter(t, c, acc, lottery.DefaultEntryFee)
		checkPlayers(t, c, acc.ScriptHash(), acc.ScriptHash())
	})
	t.Run("zero amount", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		gasInvoker := c.NewInvoker(c.NativeHash(t, nativenames.Gas), acc)
		gasInvoker.InvokeFail(t, lottery.ErrEntryFeeTooLow, "transfer", acc.ScriptHash(), c.Hash, 0, lottery.EnterPurpose)
		checkPlayers(t, c)
	})
	t.Run("below fee", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		gasInvoker := c.NewInvoker(c.NativeHash(t, nativenames.Gas), acc)
		gasInvoker.InvokeFail(t, lottery.ErrEntryFeeTooLow, "transfer", acc.ScriptHash(), c.Hash, lottery.DefaultEntryFee-1, lottery.EnterPurpose)
		checkPlayers(t, c)
	})
	t.Run("unknown purpose", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		gasInvoker := c.NewInvoker(c.NativeHash(t, nativenames.Gas), acc)
		gasInvoker.InvokeFail(t, "unknown payment purpose", "transfer", acc.ScriptHash(), c.Hash, lottery.DefaultEntryFee, "donate")
	})
	t.Run("plain transfer", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		gasInvoker := c.NewInvoker(c.NativeHash(t, nativenames.Gas), acc)
		gasInvoker.Invoke(t, true, "transfer", acc.ScriptHash(), c.Hash, lottery.DefaultEntryFee, nil)
		checkPlayers(t, c, acc.ScriptHash())
	})
	t.Run("direct call", func(t *testing.T) {
		acc := c.NewAccount(t)
		c.WithSigners(acc).InvokeFail(t, "only GAS is accepted", "onNEP17Payment", acc.ScriptHash(), lottery.DefaultEntryFee, nil)
	})
}

func TestLottery_PickWinner(t *testing.T) {
	t.Run("not a manager", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		enter(t, c, acc, 2_0000_0000)
		before := c.Chain.GetUtilityTokenBalance(c.Hash)
		c.WithSigners(acc).InvokeFail(t, lottery.ErrNotManager, "pickWinner")
		checkPlayers(t, c, acc.ScriptHash())
		require.Equal(t, before, c.Chain.GetUtilityTokenBalance(c.Hash))
	})
	t.Run("no players", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		c.InvokeFail(t, lottery.ErrNoPlayers, "pickWinner")
		c.Invoke(t, 0, "getRound")
	})
	t.Run("pays the winner and resets players", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		acc := c.NewAccount(t)
		enter(t, c, acc, 2_0000_0000)

		initial := c.Chain.GetUtilityTokenBalance(acc.ScriptHash())
		c.Invoke(t, acc.ScriptHash().BytesBE(), "pickWinner")
		final := c.Chain.GetUtilityTokenBalance(acc.ScriptHash())

		diff := new(big.Int).Sub(final, initial)
		require.True(t, diff.Cmp(big.NewInt(1_8000_0000)) > 0, "balance difference: %s", diff)
		require.Equal(t, 0, c.Chain.GetUtilityTokenBalance(c.Hash).Sign())
		checkPlayers(t, c)
		c.Invoke(t, 1, "getRound")
	})
	t.Run("winner is one of the players", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		players := make([]util.Uint160, 3)
		for i := range players {
			acc := c.NewAccount(t)
			enter(t, c, acc, 1_0000_0000)
			players[i] = acc.ScriptHash()
		}

		tx := c.PrepareInvoke(t, "pickWinner")
		c.AddNewBlock(t, tx)
		aer := c.GetTxExecResult(t, tx.Hash())
		require.Equal(t, 1, len(aer.Stack))
		b, err := aer.Stack[0].TryBytes()
		require.NoError(t, err)
		winner, err := util.Uint160DecodeBytesBE(b)
		require.NoError(t, err)
		require.Contains(t, players, winner)

		var params []stackitem.Item
		for _, ev := range aer.Events {
			if ev.ScriptHash.Equals(c.Hash) && ev.Name == "Winner" {
				params = ev.Item.Value().([]stackitem.Item)
			}
		}
		require.Len(t, params, 5)
		prize, err := params[1].TryInteger()
		require.NoError(t, err)
		require.Equal(t, int64(3_0000_0000), prize.Int64())
		idx, err := params[3].TryInteger()
		require.NoError(t, err)
		require.Equal(t, winner, players[idx.Int64()])
		n, err := params[4].TryInteger()
		require.NoError(t, err)
		require.Equal(t, int64(3), n.Int64())
	})
	t.Run("next round", func(t *testing.T) {
		c := newLotteryClient(t, nil)
		first := c.NewAccount(t)
		enter(t, c, first, 1_0000_0000)
		c.Invoke(t, first.ScriptHash().BytesBE(), "pickWinner")

		second := c.NewAccount(t)
		enter(t, c, second, 1_0000_0000)
		checkPlayers(t, c, second.ScriptHash())
		c.Invoke(t, second.ScriptHash().BytesBE(), "pickWinner")
		c.Invoke(t, 2, "getRound")
	})
}

func TestLottery_PlayerStorage(t *testing.T) {
	c := newLotteryClient(t, nil)
	id := c.Chain.GetContractState(c.Hash).ID
	players := make([]util.Uint160, 3)
	for i := range players {
		acc := c.NewAccount(t)
		enter(t, c, acc, lottery.DefaultEntryFee)
		players[i] = acc.ScriptHash()
	}

	// Every entry is a separate item, so its size doesn't depend on the
	// number of players.
	for i, p := range players {
		key := []byte(lottery.PlayerPrefix + strconv.Itoa(i))
		require.Equal(t, p.BytesBE(), []byte(c.Chain.GetStorageItem(id, key)))
	}

	tx := c.PrepareInvoke(t, "pickWinner")
	c.AddNewBlock(t, tx)
	c.CheckHalt(t, tx.Hash())
	for i := range players {
		key := []byte(lottery.PlayerPrefix + strconv.Itoa(i))
		require.Nil(t, c.Chain.GetStorageItem(id, key))
	}
	checkPlayers(t, c)

	acc := c.NewAccount(t)
	enter(t, c, acc, lottery.DefaultEntryFee)
	checkPlayers(t, c, acc.ScriptHash())
}

func TestLottery_Update(t *testing.T) {
	c := newLotteryClient(t, nil)
	acc := c.NewAccount(t)
	c.WithSigners(acc).InvokeFail(t, "only manager can update", "update", []byte{}, []byte{})
}
