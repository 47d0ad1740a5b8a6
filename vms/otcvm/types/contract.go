// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/log"
)

// TemplateID identifies a registered contract implementation.
type TemplateID uint64

// BlockInfo describes the block a call executes in.
type BlockInfo struct {
	Height uint64
	Time   time.Time
}

// Env is the execution environment handed to a contract.
type Env struct {
	Block    BlockInfo
	Contract string // address of the contract being called
}

// MessageInfo carries the caller and the coins it attached. The host has
// already moved Funds into the contract's balance when the call starts.
type MessageInfo struct {
	Sender string
	Funds  Coins
}

// Deps gives a contract access to its private store and the host helpers.
type Deps struct {
	Storage database.Database
	API     AddressValidator
	Log     log.Logger
}

// Contract is implemented by every template the host can deploy.
type Contract interface {
	Instantiate(deps Deps, env Env, info MessageInfo, msg []byte) (*Response, error)
	Execute(deps Deps, env Env, info MessageInfo, msg []byte) (*Response, error)
	Query(deps Deps, env Env, msg []byte) ([]byte, error)
}

// Replier is implemented by contracts that issue sub-messages asking for a
// reply.
type Replier interface {
	Reply(deps Deps, env Env, reply Reply) (*Response, error)
}
