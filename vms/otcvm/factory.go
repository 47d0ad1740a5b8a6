// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package otcvm implements a VM hosting over-the-counter escrow markets.
//
// A factory contract deploys one market contract per unordered coin pair.
// Each market escrows deals between a creator and a counterparty and pays
// both sides out once the deal has been accepted, taking a fee for the
// market owner.
package otcvm

import (
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	luxvm "github.com/luxfi/otcvm"
	"github.com/luxfi/otcvm/vms/otcvm/config"
)

var (
	// VMID is the unique identifier for the OTC VM
	VMID = [32]byte{'o', 't', 'c', 'v', 'm'}

	_ luxvm.Factory = (*Factory)(nil)
)

// Factory creates new OTC VM instances.
type Factory struct {
	config.Config

	// Registerer receives the VM metrics. Nil keeps them private.
	Registerer prometheus.Registerer
}

func (f *Factory) New(logger log.Logger) (interface{}, error) {
	return New(f.Config, logger, f.Registerer), nil
}
