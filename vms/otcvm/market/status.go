// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package market

import (
	"encoding/json"
	"fmt"
)

// WithdrawState tracks which legs of a matched deal have been paid out.
type WithdrawState uint8

const (
	NoWithdraw WithdrawState = iota
	CreatorWithdrawn
	CounterpartyWithdrawn
	Completed
)

var withdrawStateNames = [...]string{
	NoWithdraw:            "no_withdraw",
	CreatorWithdrawn:      "creator_withdrawn",
	CounterpartyWithdrawn: "counterparty_withdrawn",
	Completed:             "completed",
}

func (w WithdrawState) String() string {
	if int(w) < len(withdrawStateNames) {
		return withdrawStateNames[w]
	}
	return fmt.Sprintf("unknown(%d)", uint8(w))
}

func (w WithdrawState) MarshalJSON() ([]byte, error) {
	if int(w) >= len(withdrawStateNames) {
		return nil, fmt.Errorf("unknown withdraw state %d", uint8(w))
	}
	return json.Marshal(withdrawStateNames[w])
}

func (w *WithdrawState) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for i, name := range withdrawStateNames {
		if name == s {
			*w = WithdrawState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown withdraw state %q", s)
}

// Leg names the funds released by a withdrawal.
type Leg uint8

const (
	// LegRefund returns coin_in to the creator of an unmatched deal.
	LegRefund Leg = iota
	// LegCoinOut pays the creator what they asked for.
	LegCoinOut
	// LegCoinIn pays the counterparty what the creator deposited.
	LegCoinIn
)

// DealStatus is NotMatched or Matched(WithdrawState). The zero value is
// NotMatched. Fields are unexported so statuses only come from the
// constructors and transitions below.
type DealStatus struct {
	matched  bool
	withdraw WithdrawState
}

func NotMatched() DealStatus {
	return DealStatus{}
}

func Matched(w WithdrawState) DealStatus {
	return DealStatus{matched: true, withdraw: w}
}

func (s DealStatus) IsMatched() bool {
	return s.matched
}

// WithdrawState is only meaningful when the deal is matched.
func (s DealStatus) WithdrawState() (WithdrawState, bool) {
	return s.withdraw, s.matched
}

func (s DealStatus) String() string {
	if !s.matched {
		return "not_matched"
	}
	return "matched(" + s.withdraw.String() + ")"
}

// Match moves an unmatched deal to Matched(NoWithdraw).
func (s DealStatus) Match() (DealStatus, error) {
	if s.matched {
		return s, ErrDealNotAvailable
	}
	return Matched(NoWithdraw), nil
}

// Transition is the outcome of a withdrawal request.
type Transition struct {
	Next DealStatus
	Leg  Leg
	// Remove is set when no funds remain in custody for the deal.
	Remove bool
	// Fee is false for the cancellation refund.
	Fee bool
}

// Withdraw returns the transition for a withdrawal by the creator
// ([byCreator]) or by the counterparty. Every combination not listed is
// ErrUnauthorized, which is what stops a party from withdrawing twice.
func (s DealStatus) Withdraw(byCreator bool) (Transition, error) {
	switch {
	case !s.matched && byCreator:
		return Transition{Next: s, Leg: LegRefund, Remove: true}, nil
	case !s.matched:
		return Transition{}, ErrUnauthorized
	}

	switch s.withdraw {
	case NoWithdraw:
		if byCreator {
			return Transition{Next: Matched(CreatorWithdrawn), Leg: LegCoinOut, Fee: true}, nil
		}
		return Transition{Next: Matched(CounterpartyWithdrawn), Leg: LegCoinIn, Fee: true}, nil
	case CreatorWithdrawn:
		if !byCreator {
			return Transition{Next: Matched(Completed), Leg: LegCoinIn, Remove: true, Fee: true}, nil
		}
	case CounterpartyWithdrawn:
		if byCreator {
			return Transition{Next: Matched(Completed), Leg: LegCoinOut, Remove: true, Fee: true}, nil
		}
	}
	return Transition{}, ErrUnauthorized
}

// MarshalJSON encodes "not_matched" or {"matched":"<withdraw state>"}.
func (s DealStatus) MarshalJSON() ([]byte, error) {
	if !s.matched {
		return json.Marshal("not_matched")
	}
	return json.Marshal(map[string]WithdrawState{"matched": s.withdraw})
}

func (s *DealStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		if name != "not_matched" {
			return fmt.Errorf("unknown deal status %q", name)
		}
		*s = NotMatched()
		return nil
	}
	var tagged struct {
		Matched *WithdrawState `json:"matched"`
	}
	if err := json.Unmarshal(b, &tagged); err != nil {
		return err
	}
	if tagged.Matched == nil {
		return fmt.Errorf("unknown deal status %s", b)
	}
	*s = Matched(*tagged.Matched)
	return nil
}
