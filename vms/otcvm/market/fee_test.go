// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		amount uint64
		fee    decimal.Decimal
		payout uint64
		taken  uint64
	}{
		{1000, decimal.New(2, -2), 980, 20},
		{1000, decimal.Zero, 1000, 0},
		{999, decimal.New(2, -2), 980, 19},
		{49, decimal.New(2, -2), 49, 0},
		{1000, MaxFee, 950, 50},
		{7, decimal.RequireFromString("0.015"), 7, 0},
		{10_000, decimal.RequireFromString("0.0125"), 9875, 125},
	}
	for _, test := range tests {
		t.Run(test.fee.String(), func(t *testing.T) {
			require := require.New(t)

			payout, taken := SplitFee(uint256.NewInt(test.amount), test.fee)
			require.Equal(test.payout, payout.Uint64())
			require.Equal(test.taken, taken.Uint64())
		})
	}
}

func TestSplitFeeLargeAmount(t *testing.T) {
	require := require.New(t)

	amount := new(uint256.Int).SetAllOne()
	payout, taken := SplitFee(amount, MaxFee)
	sum := new(uint256.Int).Add(payout, taken)
	require.True(sum.Eq(amount))
	require.False(taken.IsZero())
}

func TestValidateFee(t *testing.T) {
	require := require.New(t)

	require.NoError(validateFee(decimal.Zero))
	require.NoError(validateFee(MaxFee))
	require.ErrorIs(validateFee(decimal.New(6, -2)), ErrOverFeeMax)
	require.ErrorIs(validateFee(decimal.New(-1, -2)), ErrNegativeFee)
}
