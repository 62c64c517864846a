package api

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pushchain/piet/workbench/store"
)

// ContractStore is the part of the contract registry the API needs
type ContractStore interface {
	Get(ctx context.Context, name string) (*store.ContractEntry, error)
	List(ctx context.Context) ([]store.ContractEntry, error)
	SetAddress(ctx context.Context, name string, address common.Address, network string) error
}
