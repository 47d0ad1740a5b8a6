// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/otcvm/vms/otcvm/state"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

func testAddr(t *testing.T, b byte) string {
	addr, err := types.FormatAddress(types.DefaultHRP, ids.ShortID{b})
	require.NoError(t, err)
	return addr
}

type testMarket struct {
	t        *testing.T
	contract types.Contract
	deps     types.Deps
	env      types.Env

	owner   string
	creator string
	bob     string
	eve     string
}

func newTestMarket(t *testing.T, fee decimal.Decimal) *testMarket {
	tm := &testMarket{
		t:        t,
		contract: New(),
		deps: types.Deps{
			Storage: memdb.New(),
			API:     types.Bech32Validator{HRP: types.DefaultHRP},
			Log:     log.NewNoOpLogger(),
		},
		env: types.Env{
			Block:    types.BlockInfo{Height: 100},
			Contract: testAddr(t, 0xff),
		},
		owner:   testAddr(t, 1),
		creator: testAddr(t, 2),
		bob:     testAddr(t, 3),
		eve:     testAddr(t, 4),
	}
	_, err := tm.contract.Instantiate(tm.deps, tm.env, types.MessageInfo{Sender: tm.owner}, mustJSON(t, InstantiateMsg{
		FirstCoin:  "astro",
		SecondCoin: "usdc",
		Fee:        fee,
	}))
	require.NoError(t, err)
	return tm
}

func mustJSON(t *testing.T, v any) []byte {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func (tm *testMarket) execute(sender string, msg ExecuteMsg, funds ...types.Coin) (*types.Response, error) {
	return tm.contract.Execute(tm.deps, tm.env, types.MessageInfo{Sender: sender, Funds: funds}, mustJSON(tm.t, msg))
}

func (tm *testMarket) createDeal(sender string, deposit, want types.Coin, counterparty string, timeout uint64) (*types.Response, error) {
	return tm.execute(sender, ExecuteMsg{CreateDeal: &CreateDealMsg{
		CoinOut:      want,
		Counterparty: counterparty,
		Timeout:      timeout,
	}}, deposit)
}

func (tm *testMarket) accept(sender, creator string, id uint64, funds ...types.Coin) (*types.Response, error) {
	return tm.execute(sender, ExecuteMsg{AcceptDeal: &DealRef{Creator: creator, DealID: id}}, funds...)
}

func (tm *testMarket) withdraw(sender, creator string, id uint64) (*types.Response, error) {
	return tm.execute(sender, ExecuteMsg{Withdraw: &DealRef{Creator: creator, DealID: id}})
}

func (tm *testMarket) query(msg QueryMsg, out any) {
	b, err := tm.contract.Query(tm.deps, tm.env, mustJSON(tm.t, msg))
	require.NoError(tm.t, err)
	require.NoError(tm.t, json.Unmarshal(b, out))
}

func (tm *testMarket) deal(creator string, id uint64) (Deal, error) {
	return deals.Load(tm.deps.Storage, state.DealKey{Creator: creator, ID: id})
}

func bankSends(t *testing.T, res *types.Response) []types.BankSend {
	sends := make([]types.BankSend, 0, len(res.Messages))
	for _, sub := range res.Messages {
		send, ok := sub.Msg.(types.BankSend)
		require.True(t, ok)
		require.Equal(t, types.ReplyNever, sub.ReplyOn)
		sends = append(sends, send)
	}
	return sends
}

func requireSend(t *testing.T, send types.BankSend, to string, coin types.Coin) {
	require.Equal(t, to, send.ToAddress)
	require.Len(t, send.Amount, 1)
	require.True(t, coin.Equal(send.Amount[0]), "expected %s, got %s", coin, send.Amount[0])
}

func TestInstantiate(t *testing.T) {
	tests := []struct {
		name   string
		msg    InstantiateMsg
		err    error
		target any
	}{
		{
			name: "native",
			msg:  InstantiateMsg{FirstCoin: "astro", SecondCoin: "usdc", Fee: decimal.New(1, -2)},
		},
		{
			name: "ibc",
			msg:  InstantiateMsg{FirstCoin: "ibc/EBD5A24C554198EBAF44979C5B4D2C2D312E6EBAB71962C92F735499C7575839", SecondCoin: "usdc", Fee: decimal.New(1, -2)},
		},
		{
			name: "token factory",
			msg:  InstantiateMsg{FirstCoin: "factory/wasm1jdppe6fnj2q7hjsepty5crxtrryzhuqsjrj95y/astro", SecondCoin: "usdc", Fee: decimal.New(1, -2)},
		},
		{
			name: "over max fee",
			msg:  InstantiateMsg{FirstCoin: "astro", SecondCoin: "usdc", Fee: decimal.New(6, -2)},
			err:  ErrOverFeeMax,
		},
		{
			name: "negative fee",
			msg:  InstantiateMsg{FirstCoin: "astro", SecondCoin: "usdc", Fee: decimal.New(-1, -2)},
			err:  ErrNegativeFee,
		},
		{
			name: "invalid denom",
			msg:  InstantiateMsg{FirstCoin: "a", SecondCoin: "usdc"},
			err:  types.ErrInvalidDenom,
		},
		{
			name:   "same coin",
			msg:    InstantiateMsg{FirstCoin: "astro", SecondCoin: "astro", Fee: decimal.New(1, -2)},
			target: &CoinError{},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			db := memdb.New()
			deps := types.Deps{Storage: db, API: types.Bech32Validator{HRP: types.DefaultHRP}, Log: log.NewNoOpLogger()}
			owner := testAddr(t, 1)
			_, err := New().Instantiate(deps, types.Env{}, types.MessageInfo{Sender: owner}, mustJSON(t, test.msg))

			switch {
			case test.err != nil:
				require.ErrorIs(err, test.err)
			case test.target != nil:
				var coinErr *CoinError
				require.True(errors.As(err, &coinErr))
				require.Equal(test.msg.FirstCoin, coinErr.FirstCoin)
				require.Equal(test.msg.SecondCoin, coinErr.SecondCoin)
			default:
				require.NoError(err)
				cfg, err := config.Load(db)
				require.NoError(err)
				require.Equal(owner, cfg.Owner)
				require.Equal(test.msg.FirstCoin, cfg.FirstCoin)
				require.Equal(test.msg.SecondCoin, cfg.SecondCoin)
				require.True(test.msg.Fee.Equal(cfg.Fee))

				v, err := state.GetContractVersion(db)
				require.NoError(err)
				require.Equal(ContractName, v.Contract)
			}
			if err != nil {
				_, loadErr := config.Load(db)
				require.ErrorIs(loadErr, state.ErrNotFound)
			}
		})
	}
}

func TestCreateDeal(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(2, -2))

	res, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(500, "usdc"), tm.bob, 10)
	require.NoError(err)
	require.Empty(res.Messages)
	require.Equal([]types.Attribute{
		{Key: "action", Value: "create_deal"},
		{Key: "deal_id", Value: "0"},
		{Key: "creator", Value: tm.creator},
	}, res.Attributes)

	deal, err := tm.deal(tm.creator, 0)
	require.NoError(err)
	require.True(types.NewCoin(1000, "astro").Equal(deal.CoinIn))
	require.True(types.NewCoin(500, "usdc").Equal(deal.CoinOut))
	require.Equal(tm.bob, deal.Counterparty)
	require.Equal(uint64(110), deal.Timeout)
	require.Equal(NotMatched(), deal.Status)

	res, err = tm.createDeal(tm.creator, types.NewCoin(5, "usdc"), types.NewCoin(5, "astro"), "", 0)
	require.NoError(err)
	require.Equal("1", res.Attributes[1].Value)
}

func TestCreateDealErrors(t *testing.T) {
	tm := newTestMarket(t, decimal.New(2, -2))
	msg := func(want types.Coin, counterparty string, timeout uint64) ExecuteMsg {
		return ExecuteMsg{CreateDeal: &CreateDealMsg{CoinOut: want, Counterparty: counterparty, Timeout: timeout}}
	}

	tests := []struct {
		name  string
		msg   ExecuteMsg
		funds []types.Coin
		err   error
	}{
		{
			name: "no funds",
			msg:  msg(types.NewCoin(1, "usdc"), "", 10),
			err:  ErrFunds,
		},
		{
			name:  "two coins",
			msg:   msg(types.NewCoin(1, "usdc"), "", 10),
			funds: []types.Coin{types.NewCoin(1, "astro"), types.NewCoin(1, "usdc")},
			err:   ErrFunds,
		},
		{
			name:  "deposit not allowed",
			msg:   msg(types.NewCoin(1, "usdc"), "", 10),
			funds: []types.Coin{types.NewCoin(1, "atom")},
			err:   ErrCoinNotAllowed,
		},
		{
			name:  "coin out not allowed",
			msg:   msg(types.NewCoin(1, "atom"), "", 10),
			funds: []types.Coin{types.NewCoin(1, "astro")},
			err:   ErrCoinNotAllowed,
		},
		{
			name:  "zero coin out",
			msg:   msg(types.NewCoin(0, "usdc"), "", 10),
			funds: []types.Coin{types.NewCoin(1, "astro")},
			err:   types.ErrZeroAmount,
		},
		{
			name:  "counterparty not normalized",
			msg:   msg(types.NewCoin(1, "usdc"), "Spiderman", 10),
			funds: []types.Coin{types.NewCoin(1, "astro")},
			err:   types.ErrInvalidAddress,
		},
		{
			name:  "timeout overflow",
			msg:   msg(types.NewCoin(1, "usdc"), "", ^uint64(0)),
			funds: []types.Coin{types.NewCoin(1, "astro")},
			err:   ErrInvalidTimeout,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := tm.execute(tm.creator, test.msg, test.funds...)
			require.ErrorIs(t, err, test.err)
		})
	}

	var res DealsResponse
	tm.query(QueryMsg{AllDeals: &AllDealsQuery{IncludeExpired: true}}, &res)
	require.Empty(t, res.Deals)
}

func TestExecuteRejectsMalformed(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.Zero)
	info := types.MessageInfo{Sender: tm.creator}

	_, err := tm.contract.Execute(tm.deps, tm.env, info, []byte(`{}`))
	require.ErrorIs(err, types.ErrInvalidMsg)
	_, err = tm.contract.Execute(tm.deps, tm.env, info, []byte(`{"swap":{}}`))
	require.ErrorIs(err, types.ErrInvalidMsg)
	_, err = tm.contract.Execute(tm.deps, tm.env, info, []byte(`{"withdraw":{"creator":"x","deal_id":0},"accept_deal":{"creator":"x","deal_id":0}}`))
	require.ErrorIs(err, types.ErrInvalidMsg)
}

func TestAcceptDealErrorOrder(t *testing.T) {
	tm := newTestMarket(t, decimal.New(2, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(500, "usdc"), tm.bob, 10)
	require.NoError(t, err)

	usdc500 := types.NewCoin(500, "usdc")
	tests := []struct {
		name    string
		sender  string
		creator string
		id      uint64
		funds   []types.Coin
		err     error
	}{
		{
			name:    "no funds beats everything",
			sender:  tm.creator,
			creator: tm.creator,
			id:      9,
			err:     ErrFunds,
		},
		{
			name:    "sender is creator",
			sender:  tm.creator,
			creator: tm.creator,
			id:      9,
			funds:   []types.Coin{usdc500},
			err:     ErrSenderIsCreator,
		},
		{
			name:    "not found",
			sender:  tm.bob,
			creator: tm.creator,
			id:      9,
			funds:   []types.Coin{usdc500},
			err:     state.ErrNotFound,
		},
		{
			name:    "unauthorized counterparty",
			sender:  tm.eve,
			creator: tm.creator,
			funds:   []types.Coin{usdc500},
			err:     ErrUnauthorized,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := tm.accept(test.sender, test.creator, test.id, test.funds...)
			require.ErrorIs(t, err, test.err)
		})
	}

	t.Run("wrong coin reports expected coin_out", func(t *testing.T) {
		require := require.New(t)

		for _, sent := range []types.Coin{types.NewCoin(499, "usdc"), types.NewCoin(500, "astro")} {
			_, err := tm.accept(tm.eve, tm.creator, 0, sent)
			var wrong *WrongCoinError
			require.True(errors.As(err, &wrong))
			require.True(usdc500.Equal(wrong.Expected))
		}
	})

	t.Run("expired", func(t *testing.T) {
		tm.env.Block.Height = 111
		defer func() { tm.env.Block.Height = 100 }()

		_, err := tm.accept(tm.bob, tm.creator, 0, usdc500)
		require.ErrorIs(t, err, ErrDealNotAvailable)
	})

	t.Run("accepted at the timeout height", func(t *testing.T) {
		require := require.New(t)

		tm.env.Block.Height = 110
		defer func() { tm.env.Block.Height = 100 }()

		_, err := tm.accept(tm.bob, tm.creator, 0, usdc500)
		require.NoError(err)

		deal, err := tm.deal(tm.creator, 0)
		require.NoError(err)
		require.Equal(Matched(NoWithdraw), deal.Status)
		require.Equal(tm.bob, deal.Counterparty)
	})

	t.Run("already matched", func(t *testing.T) {
		_, err := tm.accept(tm.bob, tm.creator, 0, usdc500)
		require.ErrorIs(t, err, ErrDealNotAvailable)
	})
}

func TestSettlementScenario(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(2, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(1000, "usdc"), "", 10)
	require.NoError(err)

	res, err := tm.accept(tm.bob, tm.creator, 0, types.NewCoin(1000, "usdc"))
	require.NoError(err)
	require.Empty(res.Messages)

	// Only the parties of the deal may withdraw.
	_, err = tm.withdraw(tm.eve, tm.creator, 0)
	require.ErrorIs(err, ErrUnauthorized)

	res, err = tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
	sends := bankSends(t, res)
	require.Len(sends, 2)
	requireSend(t, sends[0], tm.creator, types.NewCoin(980, "usdc"))
	requireSend(t, sends[1], tm.owner, types.NewCoin(20, "usdc"))

	deal, err := tm.deal(tm.creator, 0)
	require.NoError(err)
	require.Equal(Matched(CreatorWithdrawn), deal.Status)

	_, err = tm.withdraw(tm.creator, tm.creator, 0)
	require.ErrorIs(err, ErrUnauthorized)

	res, err = tm.withdraw(tm.bob, tm.creator, 0)
	require.NoError(err)
	sends = bankSends(t, res)
	require.Len(sends, 2)
	requireSend(t, sends[0], tm.bob, types.NewCoin(980, "astro"))
	requireSend(t, sends[1], tm.owner, types.NewCoin(20, "astro"))

	_, err = tm.deal(tm.creator, 0)
	require.ErrorIs(err, state.ErrNotFound)

	_, err = tm.withdraw(tm.bob, tm.creator, 0)
	require.ErrorIs(err, state.ErrNotFound)
}

func TestCounterpartyWithdrawsFirst(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(2, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(1000, "usdc"), tm.bob, 10)
	require.NoError(err)
	_, err = tm.accept(tm.bob, tm.creator, 0, types.NewCoin(1000, "usdc"))
	require.NoError(err)

	_, err = tm.withdraw(tm.bob, tm.creator, 0)
	require.NoError(err)
	_, err = tm.withdraw(tm.bob, tm.creator, 0)
	require.ErrorIs(err, ErrUnauthorized)

	res, err := tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
	requireSend(t, bankSends(t, res)[0], tm.creator, types.NewCoin(980, "usdc"))

	_, err = tm.deal(tm.creator, 0)
	require.ErrorIs(err, state.ErrNotFound)
}

func TestZeroFeeEmitsNoFeeTransfer(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.Zero)

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(1000, "usdc"), "", 10)
	require.NoError(err)
	_, err = tm.accept(tm.bob, tm.creator, 0, types.NewCoin(1000, "usdc"))
	require.NoError(err)

	res, err := tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
	sends := bankSends(t, res)
	require.Len(sends, 1)
	requireSend(t, sends[0], tm.creator, types.NewCoin(1000, "usdc"))
}

func TestCancelUnmatchedDeal(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(5, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(1000, "usdc"), tm.bob, 10)
	require.NoError(err)

	// The designated counterparty cannot pull an unmatched deal.
	_, err = tm.withdraw(tm.bob, tm.creator, 0)
	require.ErrorIs(err, ErrUnauthorized)

	// Expiry does not block cancellation.
	tm.env.Block.Height = 500
	res, err := tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
	sends := bankSends(t, res)
	require.Len(sends, 1)
	requireSend(t, sends[0], tm.creator, types.NewCoin(1000, "astro"))

	_, err = tm.deal(tm.creator, 0)
	require.ErrorIs(err, state.ErrNotFound)
}

func TestQueries(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(1, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(10, "astro"), types.NewCoin(10, "usdc"), "", 5)
	require.NoError(err)
	_, err = tm.createDeal(tm.creator, types.NewCoin(20, "astro"), types.NewCoin(20, "usdc"), "", 50)
	require.NoError(err)
	_, err = tm.createDeal(tm.bob, types.NewCoin(30, "usdc"), types.NewCoin(30, "astro"), "", 50)
	require.NoError(err)

	var cfg Config
	tm.query(QueryMsg{Config: &struct{}{}}, &cfg)
	require.Equal(tm.owner, cfg.Owner)
	require.Equal("astro", cfg.FirstCoin)

	tm.env.Block.Height = 106

	var res DealsResponse
	tm.query(QueryMsg{AllDeals: &AllDealsQuery{}}, &res)
	require.Len(res.Deals, 2)

	res = DealsResponse{}
	tm.query(QueryMsg{AllDeals: &AllDealsQuery{IncludeExpired: true}}, &res)
	require.Len(res.Deals, 3)

	res = DealsResponse{}
	tm.query(QueryMsg{DealsByCreator: &DealsByCreatorQuery{Creator: tm.creator}}, &res)
	require.Len(res.Deals, 1)
	require.Equal(uint64(1), res.Deals[0].DealID)
	require.Equal(tm.creator, res.Deals[0].Creator)
	require.True(types.NewCoin(20, "astro").Equal(res.Deals[0].CoinIn))

	res = DealsResponse{}
	tm.query(QueryMsg{DealsByCreator: &DealsByCreatorQuery{Creator: tm.creator, IncludeExpired: true}}, &res)
	require.Len(res.Deals, 2)
	require.Equal(uint64(0), res.Deals[0].DealID)

	var info DealInfo
	tm.query(QueryMsg{Deal: &DealRef{Creator: tm.creator, DealID: 0}}, &info)
	require.Equal(uint64(105), info.Timeout)

	_, err = tm.contract.Query(tm.deps, tm.env, mustJSON(t, QueryMsg{Deal: &DealRef{Creator: tm.eve}}))
	require.ErrorIs(err, state.ErrNotFound)

	// Expired deals stay withdrawable.
	_, err = tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
}

func TestWithdrawRejectsFunds(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(2, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(1000, "usdc"), "", 10)
	require.NoError(err)

	_, err = tm.execute(tm.creator, ExecuteMsg{Withdraw: &DealRef{Creator: tm.creator, DealID: 0}}, types.NewCoin(500, "astro"))
	require.ErrorIs(err, types.ErrNonPayable)

	deal, err := tm.deal(tm.creator, 0)
	require.NoError(err)
	require.Equal(NotMatched(), deal.Status)

	res, err := tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
	sends := bankSends(t, res)
	require.Len(sends, 1)
	requireSend(t, sends[0], tm.creator, types.NewCoin(1000, "astro"))
}

func TestMatchedDealWithdrawableAfterExpiry(t *testing.T) {
	require := require.New(t)

	tm := newTestMarket(t, decimal.New(2, -2))

	_, err := tm.createDeal(tm.creator, types.NewCoin(1000, "astro"), types.NewCoin(1000, "usdc"), "", 10)
	require.NoError(err)
	_, err = tm.accept(tm.bob, tm.creator, 0, types.NewCoin(1000, "usdc"))
	require.NoError(err)

	// Timeout is 110.
	tm.env.Block.Height = 111

	var res DealsResponse
	tm.query(QueryMsg{AllDeals: &AllDealsQuery{}}, &res)
	require.Empty(res.Deals)

	out, err := tm.withdraw(tm.creator, tm.creator, 0)
	require.NoError(err)
	sends := bankSends(t, out)
	require.Len(sends, 2)
	requireSend(t, sends[0], tm.creator, types.NewCoin(980, "usdc"))
	requireSend(t, sends[1], tm.owner, types.NewCoin(20, "usdc"))

	tm.env.Block.Height = 1000
	out, err = tm.withdraw(tm.bob, tm.creator, 0)
	require.NoError(err)
	sends = bankSends(t, out)
	require.Len(sends, 2)
	requireSend(t, sends[0], tm.bob, types.NewCoin(980, "astro"))
	requireSend(t, sends[1], tm.owner, types.NewCoin(20, "astro"))

	_, err = tm.deal(tm.creator, 0)
	require.ErrorIs(err, state.ErrNotFound)
}
