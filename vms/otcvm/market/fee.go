// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxFee is the highest fee a market accepts, 5%.
var MaxFee = decimal.New(5, -2)

func validateFee(fee decimal.Decimal) error {
	switch {
	case fee.IsNegative():
		return ErrNegativeFee
	case fee.GreaterThan(MaxFee):
		return ErrOverFeeMax
	default:
		return nil
	}
}

// SplitFee returns floor(amount * fee) and the remainder paid out. [fee]
// must be within [0, MaxFee].
func SplitFee(amount *uint256.Int, fee decimal.Decimal) (payout, feeAmount *uint256.Int) {
	f := decimal.NewFromBigInt(amount.ToBig(), 0).Mul(fee).Floor()
	feeAmount = uint256.MustFromBig(f.BigInt())
	payout = new(uint256.Int).Sub(amount, feeAmount)
	return payout, feeAmount
}
