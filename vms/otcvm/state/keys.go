// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

const keySeparator = 0x00

var errMalformedKey = errors.New("malformed key")

// KeyCodec maps a key type to bytes whose ordering matches the key ordering.
type KeyCodec[K any] interface {
	Encode(K) []byte
	Decode([]byte) (K, error)
}

var (
	_ KeyCodec[string]            = StringKey{}
	_ KeyCodec[uint64]            = Uint64Key{}
	_ KeyCodec[types.OrderedPair] = PairKey{}
	_ KeyCodec[DealKey]           = DealKeyCodec{}
)

type StringKey struct{}

func (StringKey) Encode(k string) []byte { return []byte(k) }

func (StringKey) Decode(b []byte) (string, error) { return string(b), nil }

// Uint64Key encodes big endian so iteration is numeric.
type Uint64Key struct{}

func (Uint64Key) Encode(k uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, k)
}

func (Uint64Key) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: uint64 key is %d bytes", errMalformedKey, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// PairKey encodes first 0x00 second. Denoms never contain 0x00.
type PairKey struct{}

func (PairKey) Encode(p types.OrderedPair) []byte {
	b := make([]byte, 0, len(p.First)+1+len(p.Second))
	b = append(b, p.First...)
	b = append(b, keySeparator)
	return append(b, p.Second...)
}

func (PairKey) Decode(b []byte) (types.OrderedPair, error) {
	first, second, ok := bytes.Cut(b, []byte{keySeparator})
	if !ok {
		return types.OrderedPair{}, fmt.Errorf("%w: pair key has no separator", errMalformedKey)
	}
	return types.OrderedPair{First: string(first), Second: string(second)}, nil
}

// DealKey identifies a deal by its creator and per-market sequence number.
type DealKey struct {
	Creator string `json:"creator"`
	ID      uint64 `json:"deal_id"`
}

func (k DealKey) String() string {
	return fmt.Sprintf("%s/%d", k.Creator, k.ID)
}

// DealKeyCodec encodes creator 0x00 big-endian(id), so all deals of one
// creator are contiguous and ordered by id.
type DealKeyCodec struct{}

func (DealKeyCodec) Encode(k DealKey) []byte {
	return binary.BigEndian.AppendUint64(CreatorPrefix(k.Creator), k.ID)
}

func (DealKeyCodec) Decode(b []byte) (DealKey, error) {
	if len(b) < 9 || b[len(b)-9] != keySeparator {
		return DealKey{}, fmt.Errorf("%w: deal key", errMalformedKey)
	}
	return DealKey{
		Creator: string(b[:len(b)-9]),
		ID:      binary.BigEndian.Uint64(b[len(b)-8:]),
	}, nil
}

// CreatorPrefix is the RangePrefix argument selecting one creator's deals.
func CreatorPrefix(creator string) []byte {
	b := make([]byte, 0, len(creator)+9)
	b = append(b, creator...)
	return append(b, keySeparator)
}
