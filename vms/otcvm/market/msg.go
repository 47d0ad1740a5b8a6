// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"github.com/shopspring/decimal"

	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

// InstantiateMsg configures a new market. The factory sends it.
type InstantiateMsg struct {
	FirstCoin  string          `json:"first_coin"`
	SecondCoin string          `json:"second_coin"`
	Fee        decimal.Decimal `json:"fee"`
}

// ExecuteMsg is externally tagged: exactly one field is set.
type ExecuteMsg struct {
	CreateDeal *CreateDealMsg `json:"create_deal,omitempty"`
	AcceptDeal *DealRef       `json:"accept_deal,omitempty"`
	Withdraw   *DealRef       `json:"withdraw,omitempty"`
}

type CreateDealMsg struct {
	CoinOut      types.Coin `json:"coin_out"`
	Counterparty string     `json:"counterparty,omitempty"`
	// Timeout is the number of blocks, from the current one, during which
	// the deal can be accepted.
	Timeout uint64 `json:"timeout"`
}

// DealRef names a deal by its creator and id.
type DealRef struct {
	Creator string `json:"creator"`
	DealID  uint64 `json:"deal_id"`
}

// QueryMsg is externally tagged: exactly one field is set.
type QueryMsg struct {
	Config         *struct{}            `json:"config,omitempty"`
	DealsByCreator *DealsByCreatorQuery `json:"deals_by_creator,omitempty"`
	AllDeals       *AllDealsQuery       `json:"all_deals,omitempty"`
	Deal           *DealRef             `json:"deal,omitempty"`
}

// DealsByCreatorQuery lists the deals of one creator. A deal is expired, and
// hidden unless IncludeExpired is set, once the query height is past its
// timeout.
type DealsByCreatorQuery struct {
	Creator        string `json:"creator"`
	IncludeExpired bool   `json:"include_expired,omitempty"`
}

type AllDealsQuery struct {
	IncludeExpired bool `json:"include_expired,omitempty"`
}

// DealInfo is a deal together with its key.
type DealInfo struct {
	Creator string `json:"creator"`
	DealID  uint64 `json:"deal_id"`
	Deal
}

type DealsResponse struct {
	Deals []DealInfo `json:"deals"`
}

func dealInfo(e state.Entry[state.DealKey, Deal]) DealInfo {
	return DealInfo{Creator: e.Key.Creator, DealID: e.Key.ID, Deal: e.Value}
}
