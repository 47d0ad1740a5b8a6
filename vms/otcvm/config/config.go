// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration types for the OTC VM.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/otcvm/vms/otcvm/types"
)

var (
	ErrInvalidHRP           = errors.New("invalid address prefix")
	ErrInvalidCallDepth     = errors.New("invalid max call depth")
	ErrInvalidBlockSize     = errors.New("invalid max txs per block")
	ErrInvalidMempoolSize   = errors.New("invalid mempool size")
	ErrInvalidBlockInterval = errors.New("invalid block interval")
)

// Config contains configuration parameters for the OTC VM.
type Config struct {
	// AddressHRP is the bech32 prefix of every account and contract address
	AddressHRP string `json:"addressHRP"`
	// MaxCallDepth bounds nested contract calls within one transaction
	MaxCallDepth int `json:"maxCallDepth"`

	// Block configuration
	BlockInterval  time.Duration `json:"blockInterval"`
	MaxTxsPerBlock int           `json:"maxTxsPerBlock"`
	MempoolSize    int           `json:"mempoolSize"`

	// IndexTxResults persists the result of every transaction so it can be
	// fetched over the API after the block is accepted
	IndexTxResults bool `json:"indexTxResults"`
}

// DefaultConfig returns the default configuration for the OTC VM.
func DefaultConfig() Config {
	return Config{
		AddressHRP:     types.DefaultHRP,
		MaxCallDepth:   8,
		BlockInterval:  time.Second,
		MaxTxsPerBlock: 1000,
		MempoolSize:    10_000,
		IndexTxResults: true,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch {
	case c.AddressHRP == "":
		return ErrInvalidHRP
	case c.MaxCallDepth <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidCallDepth, c.MaxCallDepth)
	case c.MaxTxsPerBlock <= 0:
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, c.MaxTxsPerBlock)
	case c.MempoolSize < c.MaxTxsPerBlock:
		return fmt.Errorf("%w: %d is below max txs per block %d", ErrInvalidMempoolSize, c.MempoolSize, c.MaxTxsPerBlock)
	case c.BlockInterval <= 0:
		return fmt.Errorf("%w: %s", ErrInvalidBlockInterval, c.BlockInterval)
	}
	for _, r := range c.AddressHRP {
		if r < 'a' || r > 'z' {
			return fmt.Errorf("%w: %q", ErrInvalidHRP, c.AddressHRP)
		}
	}
	return nil
}

// ParseConfig parses configuration from JSON bytes on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if len(data) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
