// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package factory implements the contract that deploys one market per coin
// pair and keeps the registry of deployed markets.
//
// Market creation spans two steps of one transaction. CreateMarket records
// the pair in a single pending slot and asks the host to instantiate the
// market. The host then calls Reply with the new address, and only then is
// the pair registered. If the instantiation fails the whole transaction,
// pending slot included, is rolled back.
package factory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/otcvm/vms/otcvm/market"
	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

const (
	ContractName    = "otc-factory"
	ContractVersion = "1.0.0"

	// InstantiateMarketReplyID tags the market instantiation sub-message.
	InstantiateMarketReplyID uint64 = 1

	marketLabel = "otc market"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnknownReply        = errors.New("unknown reply id")
	ErrMarketAlreadyExists = errors.New("the market for the given coins already exists")
	ErrNoPendingMarket     = errors.New("no market creation in flight")
)

// Config is the factory's singleton configuration.
type Config struct {
	Owner            string           `json:"owner"`
	MarketTemplateID types.TemplateID `json:"market_template_id"`
	FeeCollector     string           `json:"fee_collector,omitempty"`
}

var (
	config  = state.NewItem[Config]("config")
	pending = state.NewItem[types.OrderedPair]("tmp_market_key")
	markets = state.NewMap[types.OrderedPair, string]("markets", state.PairKey{})
)

var (
	_ types.Contract = (*Factory)(nil)
	_ types.Replier  = (*Factory)(nil)
)

type Factory struct{}

func New() types.Contract {
	return &Factory{}
}

func (*Factory) Instantiate(deps types.Deps, _ types.Env, _ types.MessageInfo, msg []byte) (*types.Response, error) {
	var m InstantiateMsg
	if err := types.DecodeMsg(msg, &m); err != nil {
		return nil, err
	}
	if err := deps.API.ValidateAddress(m.Owner); err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	if m.FeeCollector != "" {
		if err := deps.API.ValidateAddress(m.FeeCollector); err != nil {
			return nil, fmt.Errorf("fee collector: %w", err)
		}
	}

	if err := state.SetContractVersion(deps.Storage, ContractName, ContractVersion); err != nil {
		return nil, err
	}
	cfg := Config{
		Owner:            m.Owner,
		MarketTemplateID: m.MarketTemplateID,
		FeeCollector:     m.FeeCollector,
	}
	if err := config.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("owner", cfg.Owner), nil
}

func (*Factory) Execute(deps types.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var m ExecuteMsg
	if err := types.DecodeMsg(msg, &m); err != nil {
		return nil, err
	}
	if err := types.OneOf(m.UpdateConfig != nil, m.CreateMarket != nil); err != nil {
		return nil, err
	}
	if err := types.NonPayable(info.Funds); err != nil {
		return nil, err
	}

	if m.UpdateConfig != nil {
		return updateConfig(deps, info.Sender, *m.UpdateConfig)
	}
	return createMarket(deps, info.Sender, *m.CreateMarket)
}

func (*Factory) Query(deps types.Deps, _ types.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := types.DecodeMsg(msg, &m); err != nil {
		return nil, err
	}
	if err := types.OneOf(m.Config != nil, m.Markets != nil, m.Market != nil); err != nil {
		return nil, err
	}

	var (
		res any
		err error
	)
	switch {
	case m.Config != nil:
		res, err = config.Load(deps.Storage)
	case m.Markets != nil:
		res, err = queryMarkets(deps)
	default:
		res, err = queryMarket(deps, *m.Market)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// Reply registers the market whose instantiation was requested by
// CreateMarket. Only successful instantiations are reported back; a failed
// one fails the whole CreateMarket call.
func (*Factory) Reply(deps types.Deps, _ types.Env, reply types.Reply) (*types.Response, error) {
	if reply.ID != InstantiateMarketReplyID {
		return nil, fmt.Errorf("%w: %d", ErrUnknownReply, reply.ID)
	}

	pair, ok, err := pending.MayLoad(deps.Storage)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPendingMarket
	}
	addr := reply.Result.ContractAddress
	if err := markets.Save(deps.Storage, pair, addr); err != nil {
		return nil, err
	}

	deps.Log.Info("market created",
		log.Stringer("pair", pair),
		log.String("market", addr),
	)
	return types.NewResponse().
		AddAttribute("action", "market_created").
		AddAttribute("market", addr).
		AddAttribute("first_coin", pair.First).
		AddAttribute("second_coin", pair.Second), nil
}

func updateConfig(deps types.Deps, sender string, m UpdateConfigMsg) (*types.Response, error) {
	cfg, err := config.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if cfg.Owner != sender {
		return nil, ErrUnauthorized
	}

	// Validate everything before touching cfg so a bad field changes nothing.
	if m.NewOwner != "" {
		if err := deps.API.ValidateAddress(m.NewOwner); err != nil {
			return nil, fmt.Errorf("new owner: %w", err)
		}
	}
	if m.NewFeeCollector != "" {
		if err := deps.API.ValidateAddress(m.NewFeeCollector); err != nil {
			return nil, fmt.Errorf("new fee collector: %w", err)
		}
	}

	res := types.NewResponse().AddAttribute("action", "update_config")
	if m.NewOwner != "" {
		cfg.Owner = m.NewOwner
		res.AddAttribute("new_owner", m.NewOwner)
	}
	if m.NewFeeCollector != "" {
		cfg.FeeCollector = m.NewFeeCollector
		res.AddAttribute("new_fee_collector", m.NewFeeCollector)
	}
	if err := config.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}
	return res, nil
}

func createMarket(deps types.Deps, sender string, m CreateMarketMsg) (*types.Response, error) {
	cfg, err := config.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if cfg.Owner != sender {
		return nil, ErrUnauthorized
	}

	pair := types.OrderPair(m.FirstCoin, m.SecondCoin)
	exists, err := markets.Has(deps.Storage, pair)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrMarketAlreadyExists, pair)
	}

	initMsg, err := json.Marshal(market.InstantiateMsg{
		FirstCoin:  m.FirstCoin,
		SecondCoin: m.SecondCoin,
		Fee:        m.Fee,
	})
	if err != nil {
		return nil, err
	}
	if err := pending.Save(deps.Storage, pair); err != nil {
		return nil, err
	}

	return types.NewResponse().
		AddAttribute("action", "create_market").
		AddAttribute("pair", pair.String()).
		AddSubMessage(types.SubMsg{
			ID: InstantiateMarketReplyID,
			Msg: types.Instantiate{
				TemplateID: cfg.MarketTemplateID,
				Msg:        initMsg,
				Label:      marketLabel,
				Admin:      cfg.Owner,
			},
			ReplyOn: types.ReplyOnSuccess,
		}), nil
}

func queryMarkets(deps types.Deps) (MarketsResponse, error) {
	entries, err := markets.Range(deps.Storage)
	if err != nil {
		return MarketsResponse{}, err
	}
	res := MarketsResponse{Markets: make([]MarketInfo, 0, len(entries))}
	for _, e := range entries {
		res.Markets = append(res.Markets, MarketInfo{Pair: e.Key, Address: e.Value})
	}
	return res, nil
}

func queryMarket(deps types.Deps, q MarketQuery) (MarketInfo, error) {
	pair := types.OrderPair(q.FirstCoin, q.SecondCoin)
	addr, err := markets.Load(deps.Storage, pair)
	if err != nil {
		return MarketInfo{}, err
	}
	return MarketInfo{Pair: pair, Address: addr}, nil
}
