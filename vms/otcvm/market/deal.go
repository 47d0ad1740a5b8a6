// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/shopspring/decimal"

	safemath "github.com/luxfi/otcvm/utils/math"

	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

// Config is fixed when the market is instantiated.
type Config struct {
	// Owner is the instantiator, normally the factory. It receives fees.
	Owner      string          `json:"owner"`
	FirstCoin  string          `json:"first_coin"`
	SecondCoin string          `json:"second_coin"`
	Fee        decimal.Decimal `json:"fee"`
}

func (c Config) allows(denom string) bool {
	return denom == c.FirstCoin || denom == c.SecondCoin
}

// Deal is one escrowed offer. CoinIn is what the creator deposited and
// CoinOut what they want back.
type Deal struct {
	CoinIn       types.Coin `json:"coin_in"`
	CoinOut      types.Coin `json:"coin_out"`
	Counterparty string     `json:"counterparty,omitempty"`
	// Timeout is the last block height at which the deal can be accepted.
	Timeout uint64     `json:"timeout"`
	Status  DealStatus `json:"status"`
}

// Expired reports whether the deal can no longer be matched at [height].
// Expired deals can still be withdrawn.
func (d Deal) Expired(height uint64) bool {
	return d.Timeout < height
}

var (
	config  = state.NewItem[Config]("config")
	counter = state.NewItem[uint64]("counter")
	deals   = state.NewMap[state.DealKey, Deal]("deals", state.DealKeyCodec{})
)

// nextID returns the current counter value and stores its successor, so the
// first deal id is 0.
func nextID(deps types.Deps) (uint64, error) {
	id, _, err := counter.MayLoad(deps.Storage)
	if err != nil {
		return 0, err
	}
	next, err := safemath.Add(id, 1)
	if err != nil {
		return 0, err
	}
	return id, counter.Save(deps.Storage, next)
}
