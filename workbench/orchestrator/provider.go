package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pushchain/piet/workbench/chains/evm"
	"github.com/pushchain/piet/workbench/errors"
)

// RawQuery forwards a JSON-RPC request to the provider and returns its
// result verbatim.
func (o *Orchestrator) RawQuery(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return nil, errNotConnected()
	}
	if method == "" {
		return nil, errors.NewValidationError("rpc method is required")
	}
	out, err := snap.Backend.RawCall(ctx, method, params...)
	if err != nil {
		return nil, errors.NewProviderError(snap.NetVersion, method+" failed", err)
	}
	return out, nil
}

// Balance returns the wei balance of account.
func (o *Orchestrator) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return nil, errNotConnected()
	}
	balance, err := snap.Backend.BalanceAt(ctx, account)
	if err != nil {
		return nil, errors.NewProviderError(snap.NetVersion, "failed to read balance", err)
	}
	return balance, nil
}

// Accounts lists the provider-managed accounts.
func (o *Orchestrator) Accounts(ctx context.Context) ([]common.Address, error) {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return nil, errNotConnected()
	}
	accounts, err := snap.Backend.Accounts(ctx)
	if err != nil {
		return nil, errors.NewProviderError(snap.NetVersion, "failed to list accounts", err)
	}
	return accounts, nil
}

// FunctionSignature returns the 4-byte selector of method in contractABI.
func FunctionSignature(contractABI abi.ABI, method string) (string, error) {
	m, err := evm.LookupMethod(contractABI, method)
	if err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	return evm.FunctionSignature(m), nil
}

// ParseValue parses a wei amount given in decimal or 0x-hex. An empty
// string means no value.
func ParseValue(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, errors.NewMalformedInputError("value", fmt.Sprintf("invalid wei amount %q", s), nil)
	}
	return v, nil
}
