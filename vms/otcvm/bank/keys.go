// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"bytes"
	"errors"
)

var errMalformedBalanceKey = errors.New("malformed balance key")

type balanceKey struct {
	Address string
	Denom   string
}

// balanceKeyCodec encodes address 0x00 denom.
type balanceKeyCodec struct{}

func (balanceKeyCodec) Encode(k balanceKey) []byte {
	return append(addressPrefix(k.Address), k.Denom...)
}

func (balanceKeyCodec) Decode(b []byte) (balanceKey, error) {
	addr, denom, ok := bytes.Cut(b, []byte{0x00})
	if !ok {
		return balanceKey{}, errMalformedBalanceKey
	}
	return balanceKey{Address: string(addr), Denom: string(denom)}, nil
}

func addressPrefix(addr string) []byte {
	b := make([]byte, 0, len(addr)+1)
	b = append(b, addr...)
	return append(b, 0x00)
}
