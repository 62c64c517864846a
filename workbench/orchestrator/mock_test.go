package orchestrator

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/piet/workbench/chains/evm"
	"github.com/pushchain/piet/workbench/connection"
	"github.com/pushchain/piet/workbench/history"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Accounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]common.Address), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)
	if v := args.Get(0); v != nil {
		return v.(*big.Int), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	args := m.Called(ctx, msg)
	if v := args.Get(0); v != nil {
		return v.([]byte), args.Error(1)
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

func (m *mockBackend) SendTransaction(ctx context.Context, tx evm.TxArgs) (common.Hash, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	if v := args.Get(0); v != nil {
		return v.(*types.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) RawCall(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	args := m.Called(ctx, method, params)
	if v := args.Get(0); v != nil {
		return v.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBackend) NetVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockBackend) Close() {}

var (
	contractAddr = common.HexToAddress("0x0000000000000000000000000000000000000c0c")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

// connected returns an orchestrator whose connection is in rpc mode over
// backend. The provider knows alice and bob, alice first.
func connected(t *testing.T, backend *mockBackend) *Orchestrator {
	t.Helper()
	backend.On("Accounts", mock.Anything).Return([]common.Address{alice, bob}, nil).Maybe()
	backend.On("NetVersion", mock.Anything).Return("1337", nil).Maybe()

	conn := connection.NewManager(
		connection.WithDialer(func(context.Context, string) (evm.Backend, error) { return backend, nil }),
		connection.WithLogger(zerolog.Nop()),
	)
	_, err := conn.Init(context.Background(), "http://node:8545")
	require.NoError(t, err)

	return New(conn, history.NewLog(), zerolog.New(zerolog.NewTestWriter(t)),
		WithClock(func() time.Time { return fixedNow }),
		WithReceiptPolling(time.Millisecond, time.Second),
	)
}

func disconnected(t *testing.T) *Orchestrator {
	t.Helper()
	return New(connection.NewManager(), history.NewLog(), zerolog.Nop())
}
