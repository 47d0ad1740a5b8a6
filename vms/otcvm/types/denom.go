// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
)

const (
	MinDenomLength = 3
	MaxDenomLength = 128
)

var ErrInvalidDenom = errors.New("invalid denom")

// ValidateDenom checks a native denomination: 3 to 128 characters, starting
// with an ASCII letter, followed by ASCII alphanumerics or one of / : . _ -
// This admits plain denoms ("uusdc"), IBC denoms ("ibc/<hash>") and token
// factory denoms ("factory/<creator>/<sub>").
func ValidateDenom(denom string) error {
	if len(denom) < MinDenomLength || len(denom) > MaxDenomLength {
		return fmt.Errorf("%w: length must be in [%d,%d]: %q", ErrInvalidDenom, MinDenomLength, MaxDenomLength, denom)
	}
	if !isASCIILetter(denom[0]) {
		return fmt.Errorf("%w: first character is not ASCII alphabetic: %q", ErrInvalidDenom, denom)
	}
	for i := 1; i < len(denom); i++ {
		c := denom[i]
		if isASCIILetter(c) || isASCIIDigit(c) {
			continue
		}
		switch c {
		case '/', ':', '.', '_', '-':
		default:
			return fmt.Errorf("%w: not all characters are ASCII alphanumeric or one of / : . _ -: %q", ErrInvalidDenom, denom)
		}
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isASCIIDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
