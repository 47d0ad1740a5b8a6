// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package factory

import (
	"github.com/shopspring/decimal"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

type InstantiateMsg struct {
	Owner            string           `json:"owner"`
	MarketTemplateID types.TemplateID `json:"market_template_id"`
	FeeCollector     string           `json:"fee_collector,omitempty"`
}

// ExecuteMsg is externally tagged: exactly one field is set.
type ExecuteMsg struct {
	UpdateConfig *UpdateConfigMsg `json:"update_config,omitempty"`
	CreateMarket *CreateMarketMsg `json:"create_market,omitempty"`
}

// UpdateConfigMsg fields left empty are not changed.
type UpdateConfigMsg struct {
	NewOwner        string `json:"new_owner,omitempty"`
	NewFeeCollector string `json:"new_fee_collector,omitempty"`
}

type CreateMarketMsg struct {
	FirstCoin  string          `json:"first_coin"`
	SecondCoin string          `json:"second_coin"`
	Fee        decimal.Decimal `json:"fee"`
}

// QueryMsg is externally tagged: exactly one field is set.
type QueryMsg struct {
	Config  *struct{}    `json:"config,omitempty"`
	Markets *struct{}    `json:"markets,omitempty"`
	Market  *MarketQuery `json:"market,omitempty"`
}

// MarketQuery looks a market up by its coins, in either order.
type MarketQuery struct {
	FirstCoin  string `json:"first_coin"`
	SecondCoin string `json:"second_coin"`
}

type MarketInfo struct {
	Pair    types.OrderedPair `json:"pair"`
	Address string            `json:"address"`
}

type MarketsResponse struct {
	Markets []MarketInfo `json:"markets"`
}
