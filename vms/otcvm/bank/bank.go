// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bank keeps native coin balances for accounts and contracts.
package bank

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"

	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSupplyOverflow    = errors.New("supply overflow")
)

var (
	balances = state.NewMap[balanceKey, *uint256.Int]("balances", balanceKeyCodec{})
	supply   = state.NewMap[string, *uint256.Int]("supply", state.StringKey{})
)

// Balance returns the amount of [denom] held by [addr].
func Balance(db database.Database, addr, denom string) (*uint256.Int, error) {
	amount, ok, err := balances.MayLoad(db, balanceKey{Address: addr, Denom: denom})
	if err != nil {
		return nil, err
	}
	if !ok || amount == nil {
		return new(uint256.Int), nil
	}
	return amount, nil
}

// AllBalances returns every non-zero balance of [addr] ordered by denom.
func AllBalances(db database.Database, addr string) (types.Coins, error) {
	entries, err := balances.RangePrefix(db, addressPrefix(addr))
	if err != nil {
		return nil, err
	}
	coins := make(types.Coins, 0, len(entries))
	for _, e := range entries {
		coins = append(coins, types.Coin{Denom: e.Key.Denom, Amount: e.Value})
	}
	return coins, nil
}

// Supply returns the total minted amount of [denom].
func Supply(db database.Database, denom string) (*uint256.Int, error) {
	amount, ok, err := supply.MayLoad(db, denom)
	if err != nil {
		return nil, err
	}
	if !ok || amount == nil {
		return new(uint256.Int), nil
	}
	return amount, nil
}

// Mint creates [coins] in [to]'s balance. Only genesis mints.
func Mint(db database.Database, to string, coins types.Coins) error {
	if err := coins.Validate(); err != nil {
		return err
	}
	for _, c := range coins {
		total, err := Supply(db, c.Denom)
		if err != nil {
			return err
		}
		if _, overflow := total.AddOverflow(total, c.Amount); overflow {
			return fmt.Errorf("%w: %s", ErrSupplyOverflow, c.Denom)
		}
		if err := supply.Save(db, c.Denom, total); err != nil {
			return err
		}
		if err := credit(db, to, c); err != nil {
			return err
		}
	}
	return nil
}

// Send moves [coins] from [from] to [to]. Either every coin moves or, when
// any balance is short, nothing does.
func Send(db database.Database, from, to string, coins types.Coins) error {
	if err := coins.Validate(); err != nil {
		return err
	}
	for _, c := range coins {
		have, err := Balance(db, from, c.Denom)
		if err != nil {
			return err
		}
		if have.Lt(c.Amount) {
			return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, from, have.Dec(), c.Denom, c)
		}
	}
	if from == to {
		return nil
	}
	for _, c := range coins {
		if err := debit(db, from, c); err != nil {
			return err
		}
		if err := credit(db, to, c); err != nil {
			return err
		}
	}
	return nil
}

func debit(db database.Database, addr string, c types.Coin) error {
	have, err := Balance(db, addr, c.Denom)
	if err != nil {
		return err
	}
	if _, underflow := have.SubOverflow(have, c.Amount); underflow {
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, addr)
	}
	key := balanceKey{Address: addr, Denom: c.Denom}
	if have.IsZero() {
		return balances.Remove(db, key)
	}
	return balances.Save(db, key, have)
}

// credit cannot overflow: every balance is bounded by the denom's supply.
func credit(db database.Database, addr string, c types.Coin) error {
	have, err := Balance(db, addr, c.Denom)
	if err != nil {
		return err
	}
	have.Add(have, c.Amount)
	return balances.Save(db, balanceKey{Address: addr, Denom: c.Denom}, have)
}
