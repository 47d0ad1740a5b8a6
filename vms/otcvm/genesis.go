// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package otcvm

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

var (
	errNoAllocations        = errors.New("allocation has no coins")
	errDuplicateAllocation  = errors.New("duplicate allocation")
	errInvalidFactoryConfig = errors.New("invalid factory genesis")
)

// Genesis is the initial state of the chain.
type Genesis struct {
	// Timestamp is the unix time of the genesis block
	Timestamp int64        `json:"timestamp"`
	Balances  []Allocation `json:"balances"`
	// Factory, when set, is instantiated by its owner in the genesis block
	Factory *FactoryGenesis `json:"factory,omitempty"`
}

// Allocation mints coins to an account at genesis.
type Allocation struct {
	Address string      `json:"address"`
	Coins   types.Coins `json:"coins"`
}

type FactoryGenesis struct {
	Owner        string `json:"owner"`
	FeeCollector string `json:"feeCollector,omitempty"`
}

// ParseGenesis decodes and validates genesis bytes. Empty bytes are an
// empty genesis.
func ParseGenesis(b []byte, api types.AddressValidator) (*Genesis, error) {
	g := &Genesis{}
	if len(b) == 0 {
		return g, nil
	}
	if err := types.DecodeMsg(b, g); err != nil {
		return nil, err
	}
	return g, g.Verify(api)
}

func (g *Genesis) Verify(api types.AddressValidator) error {
	seen := make(map[string]struct{}, len(g.Balances))
	for _, a := range g.Balances {
		if err := api.ValidateAddress(a.Address); err != nil {
			return err
		}
		if _, ok := seen[a.Address]; ok {
			return fmt.Errorf("%w: %s", errDuplicateAllocation, a.Address)
		}
		seen[a.Address] = struct{}{}

		if len(a.Coins) == 0 {
			return fmt.Errorf("%w: %s", errNoAllocations, a.Address)
		}
		if err := a.Coins.Validate(); err != nil {
			return fmt.Errorf("allocation %s: %w", a.Address, err)
		}
	}

	if g.Factory == nil {
		return nil
	}
	if err := api.ValidateAddress(g.Factory.Owner); err != nil {
		return fmt.Errorf("%w: owner: %w", errInvalidFactoryConfig, err)
	}
	if g.Factory.FeeCollector != "" {
		if err := api.ValidateAddress(g.Factory.FeeCollector); err != nil {
			return fmt.Errorf("%w: fee collector: %w", errInvalidFactoryConfig, err)
		}
	}
	return nil
}

func (g *Genesis) Time() time.Time {
	return time.Unix(g.Timestamp, 0).UTC()
}

// Bytes encodes the genesis.
func (g *Genesis) Bytes() ([]byte, error) {
	return json.Marshal(g)
}
