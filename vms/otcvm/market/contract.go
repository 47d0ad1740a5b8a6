// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package market implements the OTC market contract. A market escrows deals
// between two counterparties for a single pair of coins and charges a fee on
// every settled leg.
package market

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/otcvm/utils/math"
	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

const (
	ContractName    = "otc-market"
	ContractVersion = "1.0.0"
)

var _ types.Contract = (*Market)(nil)

// Market is stateless: everything lives in the contract's store.
type Market struct{}

func New() types.Contract {
	return &Market{}
}

func (*Market) Instantiate(deps types.Deps, _ types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var m InstantiateMsg
	if err := types.DecodeMsg(msg, &m); err != nil {
		return nil, err
	}
	if err := types.ValidateDenom(m.FirstCoin); err != nil {
		return nil, err
	}
	if err := types.ValidateDenom(m.SecondCoin); err != nil {
		return nil, err
	}
	if m.FirstCoin == m.SecondCoin {
		return nil, &CoinError{FirstCoin: m.FirstCoin, SecondCoin: m.SecondCoin}
	}
	if err := validateFee(m.Fee); err != nil {
		return nil, err
	}

	if err := state.SetContractVersion(deps.Storage, ContractName, ContractVersion); err != nil {
		return nil, err
	}
	cfg := Config{
		Owner:      info.Sender,
		FirstCoin:  m.FirstCoin,
		SecondCoin: m.SecondCoin,
		Fee:        m.Fee,
	}
	if err := config.Save(deps.Storage, cfg); err != nil {
		return nil, err
	}
	return types.NewResponse().
		AddAttribute("action", "instantiate").
		AddAttribute("owner", cfg.Owner).
		AddAttribute("first_coin", cfg.FirstCoin).
		AddAttribute("second_coin", cfg.SecondCoin).
		AddAttribute("fee", cfg.Fee.String()), nil
}

func (*Market) Execute(deps types.Deps, env types.Env, info types.MessageInfo, msg []byte) (*types.Response, error) {
	var m ExecuteMsg
	if err := types.DecodeMsg(msg, &m); err != nil {
		return nil, err
	}
	if err := types.OneOf(m.CreateDeal != nil, m.AcceptDeal != nil, m.Withdraw != nil); err != nil {
		return nil, err
	}

	switch {
	case m.CreateDeal != nil:
		return createDeal(deps, env, info, *m.CreateDeal)
	case m.AcceptDeal != nil:
		return acceptDeal(deps, env, info, *m.AcceptDeal)
	default:
		return withdraw(deps, info, *m.Withdraw)
	}
}

func (*Market) Query(deps types.Deps, env types.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := types.DecodeMsg(msg, &m); err != nil {
		return nil, err
	}
	if err := types.OneOf(m.Config != nil, m.DealsByCreator != nil, m.AllDeals != nil, m.Deal != nil); err != nil {
		return nil, err
	}

	var (
		res any
		err error
	)
	switch {
	case m.Config != nil:
		res, err = config.Load(deps.Storage)
	case m.DealsByCreator != nil:
		res, err = queryDeals(deps, env, state.CreatorPrefix(m.DealsByCreator.Creator), m.DealsByCreator.IncludeExpired)
	case m.AllDeals != nil:
		res, err = queryDeals(deps, env, nil, m.AllDeals.IncludeExpired)
	default:
		res, err = queryDeal(deps, *m.Deal)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

// checkOnlyOneCoin rejects deposits that are empty or span several denoms.
func checkOnlyOneCoin(funds types.Coins) error {
	if len(funds) != 1 {
		return ErrFunds
	}
	return nil
}

func checkAllowedCoin(cfg Config, denom string) error {
	if !cfg.allows(denom) {
		return fmt.Errorf("%w: %s", ErrCoinNotAllowed, denom)
	}
	return nil
}

func createDeal(deps types.Deps, env types.Env, info types.MessageInfo, m CreateDealMsg) (*types.Response, error) {
	cfg, err := config.Load(deps.Storage)
	if err != nil {
		return nil, err
	}

	if err := checkOnlyOneCoin(info.Funds); err != nil {
		return nil, err
	}
	if err := checkAllowedCoin(cfg, info.Funds[0].Denom); err != nil {
		return nil, err
	}
	if err := checkAllowedCoin(cfg, m.CoinOut.Denom); err != nil {
		return nil, err
	}
	if m.CoinOut.IsZero() {
		return nil, fmt.Errorf("coin_out: %w", types.ErrZeroAmount)
	}
	if m.Counterparty != "" {
		if err := deps.API.ValidateAddress(m.Counterparty); err != nil {
			return nil, err
		}
	}
	timeout, err := safemath.Add(env.Block.Height, m.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeout, err)
	}

	id, err := nextID(deps)
	if err != nil {
		return nil, err
	}
	deal := Deal{
		CoinIn:       info.Funds[0].Clone(),
		CoinOut:      m.CoinOut.Clone(),
		Counterparty: m.Counterparty,
		Timeout:      timeout,
		Status:       NotMatched(),
	}
	if err := deals.Save(deps.Storage, state.DealKey{Creator: info.Sender, ID: id}, deal); err != nil {
		return nil, err
	}

	deps.Log.Debug("deal created",
		log.String("creator", info.Sender),
		log.Uint64("dealID", id),
		log.Uint64("timeout", timeout),
	)
	return types.NewResponse().
		AddAttribute("action", "create_deal").
		AddAttribute("deal_id", strconv.FormatUint(id, 10)).
		AddAttribute("creator", info.Sender), nil
}

func acceptDeal(deps types.Deps, env types.Env, info types.MessageInfo, ref DealRef) (*types.Response, error) {
	if err := checkOnlyOneCoin(info.Funds); err != nil {
		return nil, err
	}
	if info.Sender == ref.Creator {
		return nil, ErrSenderIsCreator
	}

	key := state.DealKey{Creator: ref.Creator, ID: ref.DealID}
	deal, err := deals.Load(deps.Storage, key)
	if err != nil {
		return nil, err
	}
	if deal.Status.IsMatched() || deal.Expired(env.Block.Height) {
		return nil, ErrDealNotAvailable
	}
	if !info.Funds[0].Equal(deal.CoinOut) {
		return nil, &WrongCoinError{Expected: deal.CoinOut}
	}
	if deal.Counterparty != "" && deal.Counterparty != info.Sender {
		return nil, ErrUnauthorized
	}

	deal.Status, err = deal.Status.Match()
	if err != nil {
		return nil, err
	}
	deal.Counterparty = info.Sender
	if err := deals.Save(deps.Storage, key, deal); err != nil {
		return nil, err
	}

	return types.NewResponse().
		AddAttribute("action", "accept_deal").
		AddAttribute("creator", ref.Creator).
		AddAttribute("deal_id", strconv.FormatUint(ref.DealID, 10)).
		AddAttribute("counterparty", info.Sender), nil
}

func withdraw(deps types.Deps, info types.MessageInfo, ref DealRef) (*types.Response, error) {
	if err := types.NonPayable(info.Funds); err != nil {
		return nil, err
	}

	cfg, err := config.Load(deps.Storage)
	if err != nil {
		return nil, err
	}

	key := state.DealKey{Creator: ref.Creator, ID: ref.DealID}
	deal, err := deals.Load(deps.Storage, key)
	if err != nil {
		return nil, err
	}

	byCreator := info.Sender == ref.Creator
	if !byCreator && (deal.Counterparty == "" || info.Sender != deal.Counterparty) {
		return nil, ErrUnauthorized
	}

	t, err := deal.Status.Withdraw(byCreator)
	if err != nil {
		return nil, err
	}

	var leg types.Coin
	switch t.Leg {
	case LegRefund:
		leg = deal.CoinIn
	case LegCoinOut:
		leg = deal.CoinOut
	default:
		leg = deal.CoinIn
	}

	payout, feeAmount := leg.Amount.Clone(), new(uint256.Int)
	if t.Fee {
		payout, feeAmount = SplitFee(leg.Amount, cfg.Fee)
	}

	if t.Remove {
		err = deals.Remove(deps.Storage, key)
	} else {
		deal.Status = t.Next
		err = deals.Save(deps.Storage, key, deal)
	}
	if err != nil {
		return nil, err
	}

	status := t.Next.String()
	if t.Leg == LegRefund {
		status = "cancelled"
	}
	res := types.NewResponse().
		AddAttribute("action", "withdraw").
		AddAttribute("creator", ref.Creator).
		AddAttribute("deal_id", strconv.FormatUint(ref.DealID, 10)).
		AddAttribute("recipient", info.Sender).
		AddAttribute("status", status)
	if !payout.IsZero() {
		res.AddMessage(types.BankSend{
			ToAddress: info.Sender,
			Amount:    types.Coins{{Denom: leg.Denom, Amount: payout}},
		})
	}
	if !feeAmount.IsZero() {
		res.AddMessage(types.BankSend{
			ToAddress: cfg.Owner,
			Amount:    types.Coins{{Denom: leg.Denom, Amount: feeAmount}},
		})
		res.AddAttribute("fee", feeAmount.Dec()+leg.Denom)
	}
	return res, nil
}

func queryDeals(deps types.Deps, env types.Env, prefix []byte, includeExpired bool) (DealsResponse, error) {
	entries, err := deals.RangePrefix(deps.Storage, prefix)
	if err != nil {
		return DealsResponse{}, err
	}
	res := DealsResponse{Deals: make([]DealInfo, 0, len(entries))}
	for _, e := range entries {
		if !includeExpired && e.Value.Expired(env.Block.Height) {
			continue
		}
		res.Deals = append(res.Deals, dealInfo(e))
	}
	return res, nil
}

func queryDeal(deps types.Deps, ref DealRef) (DealInfo, error) {
	key := state.DealKey{Creator: ref.Creator, ID: ref.DealID}
	deal, err := deals.Load(deps.Storage, key)
	if err != nil {
		return DealInfo{}, err
	}
	return DealInfo{Creator: ref.Creator, DealID: ref.DealID, Deal: deal}, nil
}
