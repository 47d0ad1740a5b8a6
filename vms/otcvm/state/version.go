// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import "github.com/luxfi/database"

// ContractVersion names the code that owns a contract store and its release.
type ContractVersion struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

var contractVersion = NewItem[ContractVersion]("contract_info")

// SetContractVersion tags a contract store with the code that wrote it.
func SetContractVersion(db database.Database, contract, version string) error {
	return contractVersion.Save(db, ContractVersion{Contract: contract, Version: version})
}

func GetContractVersion(db database.Database) (ContractVersion, error) {
	return contractVersion.Load(db)
}
