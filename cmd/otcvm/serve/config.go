// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPAddress       = "127.0.0.1:9650"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
)

var errMissingHTTPAddress = errors.New("http address is required")

// NodeConfig is the YAML configuration of a node.
type NodeConfig struct {
	HTTP HTTPConfig `yaml:"http"`
	// GenesisFile is a JSON genesis. Empty starts from an empty chain.
	GenesisFile string `yaml:"genesisFile"`
	// VM is handed to the VM as its JSON configuration.
	VM map[string]any `yaml:"vm"`
}

type HTTPConfig struct {
	Address           string        `yaml:"address"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// LoadConfig reads a YAML config file, expands environment variables,
// applies defaults and validates the result.
func LoadConfig(path string) (*NodeConfig, error) {
	cfg := &NodeConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *NodeConfig) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = DefaultHTTPAddress
	}
	if c.HTTP.ReadHeaderTimeout == 0 {
		c.HTTP.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}
}

func (c *NodeConfig) Validate() error {
	if c.HTTP.Address == "" {
		return errMissingHTTPAddress
	}
	if c.HTTP.ReadHeaderTimeout < 0 || c.HTTP.ShutdownTimeout < 0 {
		return errors.New("http timeouts must not be negative")
	}
	return nil
}

// VMConfigBytes encodes the vm section. The VM overlays it onto its
// defaults.
func (c *NodeConfig) VMConfigBytes() ([]byte, error) {
	if len(c.VM) == 0 {
		return nil, nil
	}
	return json.Marshal(c.VM)
}

func (c *NodeConfig) GenesisBytes() ([]byte, error) {
	if c.GenesisFile == "" {
		return nil, nil
	}
	b, err := os.ReadFile(c.GenesisFile)
	if err != nil {
		return nil, fmt.Errorf("read genesis file: %w", err)
	}
	return b, nil
}
