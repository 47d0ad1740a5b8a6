// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/json"
	"fmt"
)

// OrderedPair is a pair of denoms sorted by byte order, so that a lookup for
// (a, b) and one for (b, a) land on the same key.
type OrderedPair struct {
	First  string
	Second string
}

// OrderPair sorts the two denoms.
func OrderPair(a, b string) OrderedPair {
	if a < b {
		return OrderedPair{First: a, Second: b}
	}
	return OrderedPair{First: b, Second: a}
}

func (p OrderedPair) String() string {
	return p.First + "/" + p.Second
}

// MarshalJSON encodes the pair as a two element array.
func (p OrderedPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.First, p.Second})
}

func (p *OrderedPair) UnmarshalJSON(b []byte) error {
	var arr [2]string
	if err := json.Unmarshal(b, &arr); err != nil {
		return fmt.Errorf("ordered pair: %w", err)
	}
	p.First, p.Second = arr[0], arr[1]
	return nil
}
