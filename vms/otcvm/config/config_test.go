// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := ParseConfig(nil)
	require.NoError(err)
	require.Equal(DefaultConfig(), cfg)

	cfg, err = ParseConfig([]byte(`{"addressHRP":"lux","maxTxsPerBlock":10,"blockInterval":500000000}`))
	require.NoError(err)
	require.Equal("lux", cfg.AddressHRP)
	require.Equal(10, cfg.MaxTxsPerBlock)
	require.Equal(500*time.Millisecond, cfg.BlockInterval)
	require.Equal(DefaultConfig().MempoolSize, cfg.MempoolSize)

	_, err = ParseConfig([]byte(`{`))
	require.Error(err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    error
	}{
		{"empty hrp", func(c *Config) { c.AddressHRP = "" }, ErrInvalidHRP},
		{"uppercase hrp", func(c *Config) { c.AddressHRP = "OTC" }, ErrInvalidHRP},
		{"call depth", func(c *Config) { c.MaxCallDepth = 0 }, ErrInvalidCallDepth},
		{"block size", func(c *Config) { c.MaxTxsPerBlock = -1 }, ErrInvalidBlockSize},
		{"mempool", func(c *Config) { c.MempoolSize = c.MaxTxsPerBlock - 1 }, ErrInvalidMempoolSize},
		{"interval", func(c *Config) { c.BlockInterval = 0 }, ErrInvalidBlockInterval},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := DefaultConfig()
			test.modify(&cfg)
			require.ErrorIs(t, cfg.Validate(), test.err)
		})
	}
}
