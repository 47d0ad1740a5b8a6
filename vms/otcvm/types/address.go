// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/luxfi/ids"
)

const (
	DefaultHRP = "otc"

	shortPayloadLen = 20
	longPayloadLen  = 32
)

var ErrInvalidAddress = errors.New("invalid address")

// AddressValidator checks that an address string is well formed and in its
// canonical form.
type AddressValidator interface {
	ValidateAddress(addr string) error
}

var _ AddressValidator = Bech32Validator{}

// Bech32Validator accepts lowercase bech32 addresses with a fixed
// human-readable part carrying a 20 or 32 byte payload.
type Bech32Validator struct {
	HRP string
}

func (v Bech32Validator) ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	if strings.ToLower(addr) != addr {
		return fmt.Errorf("%w: address not normalized: %q", ErrInvalidAddress, addr)
	}
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	if hrp != v.HRP {
		return fmt.Errorf("%w: expected prefix %q, got %q", ErrInvalidAddress, v.HRP, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAddress, addr, err)
	}
	if len(payload) != shortPayloadLen && len(payload) != longPayloadLen {
		return fmt.Errorf("%w: payload is %d bytes", ErrInvalidAddress, len(payload))
	}
	return nil
}

// FormatAddress renders a short id as a bech32 address under [hrp].
func FormatAddress(hrp string, id ids.ShortID) (string, error) {
	return bech32.EncodeFromBase256(hrp, id[:])
}
