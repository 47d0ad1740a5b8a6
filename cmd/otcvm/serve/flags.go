// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"github.com/spf13/pflag"
)

const (
	ConfigFileKey  = "config-file"
	HTTPAddressKey = "http-address"
	GenesisFileKey = "genesis-file"
)

func AddFlags(flags *pflag.FlagSet) {
	flags.String(ConfigFileKey, "", "YAML node configuration file")
	flags.String(HTTPAddressKey, "", "Address to serve the API on, overriding the config file")
	flags.String(GenesisFileKey, "", "JSON genesis file, overriding the config file")
}

// ParseFlags loads the node configuration named by the flags and applies
// the flag overrides.
func ParseFlags(flags *pflag.FlagSet, args []string) (*NodeConfig, error) {
	if !flags.Parsed() {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}
	}

	path, err := flags.GetString(ConfigFileKey)
	if err != nil {
		return nil, err
	}

	httpAddress, err := flags.GetString(HTTPAddressKey)
	if err != nil {
		return nil, err
	}

	genesisFile, err := flags.GetString(GenesisFileKey)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if httpAddress != "" {
		cfg.HTTP.Address = httpAddress
	}
	if genesisFile != "" {
		cfg.GenesisFile = genesisFile
	}
	return cfg, nil
}
