// Package store contains the GORM models persisted by pietd.
//
// Database Structure (database file: <home>/data/piet.db):
//
//	piet.db
//	└── contract_entries
package store

import (
	"gorm.io/gorm"
)

// ContractEntry is a contract known to the workbench, addressable by name.
type ContractEntry struct {
	gorm.Model
	Name     string `gorm:"uniqueIndex;not null" json:"name"` // Name used on the CLI and in API paths
	Network  string `gorm:"index" json:"network"`             // Net version the address belongs to, empty if unknown
	Address  string `json:"address"`                          // Checksummed hex, empty until deployed
	ABI      string `gorm:"type:text;not null" json:"abi"`    // Compiled ABI JSON
	Bytecode string `gorm:"type:text" json:"bytecode"`        // Creation bytecode as 0x-hex, if known
	Source   string `gorm:"type:text" json:"source"`          // Solidity source, if known
}
