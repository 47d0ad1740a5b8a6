// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types holds the value types shared by the OTC VM host and the
// contracts it runs.
package types

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrZeroAmount     = errors.New("coin amount must be positive")
	ErrDuplicateDenom = errors.New("duplicate denom")
)

// Coin is an amount of a single denomination.
type Coin struct {
	Denom  string       `json:"denom"`
	Amount *uint256.Int `json:"amount"`
}

// NewCoin returns a coin of [amount] units of [denom].
func NewCoin(amount uint64, denom string) Coin {
	return Coin{
		Denom:  denom,
		Amount: uint256.NewInt(amount),
	}
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.IsZero()
}

// Equal reports whether both coins have the same denom and amount.
func (c Coin) Equal(o Coin) bool {
	if c.Denom != o.Denom {
		return false
	}
	if c.IsZero() || o.IsZero() {
		return c.IsZero() && o.IsZero()
	}
	return c.Amount.Eq(o.Amount)
}

// Clone returns a deep copy so the amount can be mutated independently.
func (c Coin) Clone() Coin {
	out := Coin{Denom: c.Denom}
	if c.Amount != nil {
		out.Amount = c.Amount.Clone()
	} else {
		out.Amount = new(uint256.Int)
	}
	return out
}

// Validate checks the denom format and that the amount is positive.
func (c Coin) Validate() error {
	if err := ValidateDenom(c.Denom); err != nil {
		return err
	}
	if c.IsZero() {
		return fmt.Errorf("%w: %s", ErrZeroAmount, c.Denom)
	}
	return nil
}

func (c Coin) String() string {
	if c.Amount == nil {
		return "0" + c.Denom
	}
	return c.Amount.Dec() + c.Denom
}

// Coins is a list of coins with distinct denoms.
type Coins []Coin

// Validate checks every coin and rejects repeated denoms.
func (cs Coins) Validate() error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
		if _, ok := seen[c.Denom]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateDenom, c.Denom)
		}
		seen[c.Denom] = struct{}{}
	}
	return nil
}

// AmountOf returns the amount held for [denom], zero if absent.
func (cs Coins) AmountOf(denom string) *uint256.Int {
	for _, c := range cs {
		if c.Denom == denom && c.Amount != nil {
			return c.Amount.Clone()
		}
	}
	return new(uint256.Int)
}

// Clone returns a deep copy of the list.
func (cs Coins) Clone() Coins {
	if cs == nil {
		return nil
	}
	out := make(Coins, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
