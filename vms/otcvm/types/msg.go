// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidMsg = errors.New("invalid message")
	ErrNonPayable = errors.New("this call does not accept funds")
)

// DecodeMsg strictly decodes a JSON contract message into [v].
func DecodeMsg(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMsg, err)
	}
	return nil
}

// NonPayable rejects funds attached to a call that has no use for them.
func NonPayable(funds Coins) error {
	if len(funds) != 0 {
		return fmt.Errorf("%w: got %d coin(s)", ErrNonPayable, len(funds))
	}
	return nil
}

// OneOf checks that exactly one variant of an externally tagged message is
// set. Pass each variant pointer's nil-ness.
func OneOf(set ...bool) error {
	n := 0
	for _, s := range set {
		if s {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%w: expected exactly one variant, got %d", ErrInvalidMsg, n)
	}
	return nil
}
