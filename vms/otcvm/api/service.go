// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api provides the JSON-RPC service of the OTC VM.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	utiljson "github.com/luxfi/otcvm/utils/json"
	"github.com/luxfi/otcvm/vms/otcvm/host"
	"github.com/luxfi/otcvm/vms/otcvm/types"
)

const (
	TxAccepted = "accepted"
	TxFailed   = "failed"
)

var (
	ErrNotBootstrapped = errors.New("OTC VM not bootstrapped")
	ErrInvalidRequest  = errors.New("invalid request")
)

// VM interface for the API service.
type VM interface {
	IsBootstrapped() bool
	Status() StatusReply
	IssueTx(txBytes []byte) (ids.ID, error)
	TxResult(txID ids.ID) (TxResult, error)
	Balance(addr, denom string) (*uint256.Int, error)
	AllBalances(addr string) (types.Coins, error)
	Query(contract string, msg []byte) ([]byte, error)
	Contract(addr string) (host.ContractInfo, error)
	Contracts() ([]host.ContractInfo, error)
}

// TxResult is the outcome of a processed transaction.
type TxResult struct {
	TxID            ids.ID        `json:"txID"`
	Height          uint64        `json:"height"`
	Kind            string        `json:"kind"`
	Status          string        `json:"status"`
	Error           string        `json:"error,omitempty"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	Events          []types.Event `json:"events,omitempty"`
}

// Service provides the RPC API for the OTC VM.
type Service struct {
	vm VM
}

func NewService(vm VM) *Service {
	return &Service{vm: vm}
}

type PingArgs struct{}

type PingReply struct {
	Success bool `json:"success"`
}

// Ping returns a simple health check response.
func (*Service) Ping(_ *http.Request, _ *PingArgs, reply *PingReply) error {
	reply.Success = true
	return nil
}

type StatusArgs struct{}

// StatusReply describes the last processed block.
type StatusReply struct {
	ChainID      ids.ID          `json:"chainID"`
	Height       utiljson.Uint64 `json:"height"`
	Timestamp    int64           `json:"timestamp"`
	StateRoot    ids.ID          `json:"stateRoot"`
	MempoolSize  int             `json:"mempoolSize"`
	Bootstrapped bool            `json:"bootstrapped"`
}

func (s *Service) Status(_ *http.Request, _ *StatusArgs, reply *StatusReply) error {
	*reply = s.vm.Status()
	return nil
}

// IssueTxArgs carries an encoded transaction. Its id is the hash of the
// bytes exactly as sent.
type IssueTxArgs struct {
	Tx json.RawMessage `json:"tx"`
}

type IssueTxReply struct {
	TxID ids.ID `json:"txID"`
}

// IssueTx adds a transaction to the mempool.
func (s *Service) IssueTx(_ *http.Request, args *IssueTxArgs, reply *IssueTxReply) error {
	if !s.vm.IsBootstrapped() {
		return ErrNotBootstrapped
	}
	if len(args.Tx) == 0 {
		return fmt.Errorf("%w: tx required", ErrInvalidRequest)
	}

	txID, err := s.vm.IssueTx(args.Tx)
	if err != nil {
		return err
	}
	reply.TxID = txID
	return nil
}

type GetTxResultArgs struct {
	TxID ids.ID `json:"txID"`
}

// GetTxResult returns the outcome of a processed transaction.
func (s *Service) GetTxResult(_ *http.Request, args *GetTxResultArgs, reply *TxResult) error {
	if args.TxID == ids.Empty {
		return fmt.Errorf("%w: txID required", ErrInvalidRequest)
	}

	res, err := s.vm.TxResult(args.TxID)
	if err != nil {
		return err
	}
	*reply = res
	return nil
}

// BalanceArgs selects an account and, optionally, a single denom.
type BalanceArgs struct {
	Address string `json:"address"`
	Denom   string `json:"denom,omitempty"`
}

type BalanceReply struct {
	Balances types.Coins `json:"balances"`
}

// Balance returns the balances of an account. Without a denom every
// non-zero balance is returned.
func (s *Service) Balance(_ *http.Request, args *BalanceArgs, reply *BalanceReply) error {
	if args.Address == "" {
		return fmt.Errorf("%w: address required", ErrInvalidRequest)
	}

	if args.Denom == "" {
		coins, err := s.vm.AllBalances(args.Address)
		if err != nil {
			return err
		}
		reply.Balances = coins
		return nil
	}

	if err := types.ValidateDenom(args.Denom); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	amount, err := s.vm.Balance(args.Address, args.Denom)
	if err != nil {
		return err
	}
	reply.Balances = types.Coins{{Denom: args.Denom, Amount: amount}}
	return nil
}

type QueryArgs struct {
	Contract string          `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
}

type QueryReply struct {
	Data json.RawMessage `json:"data"`
}

// Query runs a read-only contract query.
func (s *Service) Query(_ *http.Request, args *QueryArgs, reply *QueryReply) error {
	if args.Contract == "" {
		return fmt.Errorf("%w: contract required", ErrInvalidRequest)
	}
	if len(args.Msg) == 0 {
		return fmt.Errorf("%w: msg required", ErrInvalidRequest)
	}

	data, err := s.vm.Query(args.Contract, args.Msg)
	if err != nil {
		return err
	}
	reply.Data = data
	return nil
}

type GetContractArgs struct {
	Address string `json:"address"`
}

func (s *Service) GetContract(_ *http.Request, args *GetContractArgs, reply *host.ContractInfo) error {
	if args.Address == "" {
		return fmt.Errorf("%w: address required", ErrInvalidRequest)
	}

	info, err := s.vm.Contract(args.Address)
	if err != nil {
		return err
	}
	*reply = info
	return nil
}

type GetContractsArgs struct{}

type GetContractsReply struct {
	Contracts []host.ContractInfo `json:"contracts"`
}

func (s *Service) GetContracts(_ *http.Request, _ *GetContractsArgs, reply *GetContractsReply) error {
	infos, err := s.vm.Contracts()
	if err != nil {
		return err
	}
	reply.Contracts = infos
	return nil
}
