package evm

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
)

// mockBackend is a mock implementation of Backend for testing
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Accounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	if accounts := args.Get(0); accounts != nil {
		return accounts.([]common.Address), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)
	if balance := args.Get(0); balance != nil {
		return balance.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	args := m.Called(ctx, msg)
	if out := args.Get(0); out != nil {
		return out.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) SendTransaction(ctx context.Context, tx TxArgs) (common.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	if receipt := args.Get(0); receipt != nil {
		return receipt.(*types.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) RawCall(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	args := m.Called(ctx, method, params)
	if out := args.Get(0); out != nil {
		return out.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) NetVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) Close() {
	m.Called()
}
