// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

func TestItem(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	item := NewItem[uint64]("counter")

	_, err := item.Load(db)
	require.ErrorIs(err, ErrNotFound)

	v, ok, err := item.MayLoad(db)
	require.NoError(err)
	require.False(ok)
	require.Zero(v)

	require.NoError(item.Save(db, 7))
	v, err = item.Load(db)
	require.NoError(err)
	require.Equal(uint64(7), v)

	require.NoError(item.Remove(db))
	_, ok, err = item.MayLoad(db)
	require.NoError(err)
	require.False(ok)
}

func TestMapPairOrdering(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	markets := NewMap[types.OrderedPair, string]("markets", PairKey{})

	require.NoError(markets.Save(db, types.OrderPair("usdc", "luna"), "m2"))
	require.NoError(markets.Save(db, types.OrderPair("astro", "usdc"), "m1"))
	require.NoError(markets.Save(db, types.OrderPair("astro", "atom"), "m0"))

	ok, err := markets.Has(db, types.OrderPair("usdc", "astro"))
	require.NoError(err)
	require.True(ok)

	entries, err := markets.Range(db)
	require.NoError(err)
	require.Equal([]Entry[types.OrderedPair, string]{
		{Key: types.OrderedPair{First: "astro", Second: "atom"}, Value: "m0"},
		{Key: types.OrderedPair{First: "astro", Second: "usdc"}, Value: "m1"},
		{Key: types.OrderedPair{First: "luna", Second: "usdc"}, Value: "m2"},
	}, entries)
}

func TestMapNamespacesAreDisjoint(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	a := NewMap[string, int]("a", StringKey{})
	ab := NewMap[string, int]("ab", StringKey{})

	require.NoError(a.Save(db, "bc", 1))
	require.NoError(ab.Save(db, "c", 2))

	entries, err := a.Range(db)
	require.NoError(err)
	require.Len(entries, 1)
	require.Equal("bc", entries[0].Key)
}

func TestDealKeyPrefix(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	deals := NewMap[DealKey, string]("deals", DealKeyCodec{})

	require.NoError(deals.Save(db, DealKey{Creator: "alice", ID: 256}, "a256"))
	require.NoError(deals.Save(db, DealKey{Creator: "alice", ID: 1}, "a1"))
	require.NoError(deals.Save(db, DealKey{Creator: "alicex", ID: 0}, "x0"))
	require.NoError(deals.Save(db, DealKey{Creator: "bob", ID: 0}, "b0"))

	entries, err := deals.RangePrefix(db, CreatorPrefix("alice"))
	require.NoError(err)
	require.Equal([]Entry[DealKey, string]{
		{Key: DealKey{Creator: "alice", ID: 1}, Value: "a1"},
		{Key: DealKey{Creator: "alice", ID: 256}, Value: "a256"},
	}, entries)

	all, err := deals.Range(db)
	require.NoError(err)
	require.Len(all, 4)

	_, err = deals.Load(db, DealKey{Creator: "carol", ID: 0})
	require.ErrorIs(err, ErrNotFound)

	require.NoError(deals.Remove(db, DealKey{Creator: "bob", ID: 0}))
	_, ok, err := deals.MayLoad(db, DealKey{Creator: "bob", ID: 0})
	require.NoError(err)
	require.False(ok)
}

func TestKeyCodecRejectsMalformed(t *testing.T) {
	require := require.New(t)

	_, err := Uint64Key{}.Decode([]byte{1, 2})
	require.ErrorIs(err, errMalformedKey)
	_, err = PairKey{}.Decode([]byte("nosep"))
	require.ErrorIs(err, errMalformedKey)
	_, err = DealKeyCodec{}.Decode([]byte("short"))
	require.ErrorIs(err, errMalformedKey)
}

func TestContractVersion(t *testing.T) {
	require := require.New(t)

	db := memdb.New()
	_, err := GetContractVersion(db)
	require.ErrorIs(err, ErrNotFound)

	require.NoError(SetContractVersion(db, "otc-market", "1.0.0"))
	v, err := GetContractVersion(db)
	require.NoError(err)
	require.Equal(ContractVersion{Contract: "otc-market", Version: "1.0.0"}, v)
}
