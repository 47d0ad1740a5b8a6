// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"errors"
	"fmt"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrOverFeeMax       = fmt.Errorf("market fee cannot exceed maximum allowed of %s", MaxFee)
	ErrNegativeFee      = errors.New("market fee cannot be negative")
	ErrFunds            = errors.New("only one coin is accepted for the deposit")
	ErrCoinNotAllowed   = errors.New("sent coin is not allowed")
	ErrSenderIsCreator  = errors.New("deal creator cannot accept their own deal")
	ErrDealNotAvailable = errors.New("deal is not available")
	ErrInvalidTimeout   = errors.New("invalid deal timeout")
)

// CoinError reports a market configured with the same coin on both sides.
type CoinError struct {
	FirstCoin  string
	SecondCoin string
}

func (e *CoinError) Error() string {
	return fmt.Sprintf("first coin %s is equal to second coin %s", e.FirstCoin, e.SecondCoin)
}

// WrongCoinError reports a deposit that does not match the deal's coin_out.
type WrongCoinError struct {
	Expected types.Coin
}

func (e *WrongCoinError) Error() string {
	return fmt.Sprintf("wrong coin sent, expected %s", e.Expected)
}
