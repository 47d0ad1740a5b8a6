// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

func TestMintAndSend(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	require.NoError(Mint(db, "alice", types.Coins{types.NewCoin(100, "astro"), types.NewCoin(5, "usdc")}))

	supply, err := Supply(db, "astro")
	require.NoError(err)
	require.Equal(uint64(100), supply.Uint64())

	require.NoError(Send(db, "alice", "bob", types.Coins{types.NewCoin(40, "astro")}))

	bal, err := Balance(db, "alice", "astro")
	require.NoError(err)
	require.Equal(uint64(60), bal.Uint64())
	bal, err = Balance(db, "bob", "astro")
	require.NoError(err)
	require.Equal(uint64(40), bal.Uint64())

	coins, err := AllBalances(db, "alice")
	require.NoError(err)
	require.Len(coins, 2)
	require.Equal("astro", coins[0].Denom)
	require.Equal("usdc", coins[1].Denom)
}

func TestSendIsAllOrNothing(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	require.NoError(Mint(db, "alice", types.Coins{types.NewCoin(100, "astro"), types.NewCoin(5, "usdc")}))

	err := Send(db, "alice", "bob", types.Coins{types.NewCoin(10, "astro"), types.NewCoin(6, "usdc")})
	require.ErrorIs(err, ErrInsufficientFunds)

	bal, err := Balance(db, "alice", "astro")
	require.NoError(err)
	require.Equal(uint64(100), bal.Uint64())
	coins, err := AllBalances(db, "bob")
	require.NoError(err)
	require.Empty(coins)
}

func TestSendDrainsBalance(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	require.NoError(Mint(db, "alice", types.Coins{types.NewCoin(3, "astro")}))
	require.NoError(Send(db, "alice", "bob", types.Coins{types.NewCoin(3, "astro")}))

	coins, err := AllBalances(db, "alice")
	require.NoError(err)
	require.Empty(coins)
}

func TestSendRejectsInvalidCoins(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	require.ErrorIs(Send(db, "alice", "bob", types.Coins{types.NewCoin(0, "astro")}), types.ErrZeroAmount)
	require.ErrorIs(Mint(db, "alice", types.Coins{types.NewCoin(1, "x")}), types.ErrInvalidDenom)
}

func TestMintSupplyOverflow(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	max := new(uint256.Int).SetAllOne()
	require.NoError(Mint(db, "alice", types.Coins{{Denom: "astro", Amount: max}}))
	err := Mint(db, "bob", types.Coins{types.NewCoin(1, "astro")})
	require.ErrorIs(err, ErrSupplyOverflow)
}
