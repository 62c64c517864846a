package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pushchain/piet/workbench/abicodec"
)

// Contract is a handle on a deployed contract: an ABI bound to an address
// on a backend.
type Contract struct {
	backend Backend
	abi     abi.ABI
	address common.Address
}

// NewContract binds contractABI to address on backend.
func NewContract(backend Backend, contractABI abi.ABI, address common.Address) *Contract {
	return &Contract{backend: backend, abi: contractABI, address: address}
}

// Address returns the bound contract address.
func (c *Contract) Address() common.Address { return c.address }

// ABI returns the bound ABI.
func (c *Contract) ABI() abi.ABI { return c.abi }

// Method finds a method by name, by go-ethereum's disambiguated name for
// overloads (e.g. "transfer0"), or by canonical signature.
func (c *Contract) Method(name string) (abi.Method, error) {
	return LookupMethod(c.abi, name)
}

// LookupMethod finds a method on contractABI by name or canonical signature.
func LookupMethod(contractABI abi.ABI, name string) (abi.Method, error) {
	if m, ok := contractABI.Methods[name]; ok {
		return m, nil
	}
	for _, m := range contractABI.Methods {
		if m.Sig == name {
			return m, nil
		}
	}
	return abi.Method{}, fmt.Errorf("method %q not found in ABI", name)
}

// EncodeABI returns the call data for method with the given arguments.
func (c *Contract) EncodeABI(method string, args []abicodec.EncodedValue) ([]byte, error) {
	m, err := c.Method(method)
	if err != nil {
		return nil, err
	}
	values, err := CoerceArguments(m.Inputs, args)
	if err != nil {
		return nil, err
	}
	packed, err := m.Inputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack arguments for %s: %w", m.Sig, err)
	}
	return append(append([]byte{}, m.ID...), packed...), nil
}

// Call executes method as an eth_call and unpacks its outputs. A nil from
// leaves the sender to the provider. Backend errors are returned as-is.
func (c *Contract) Call(ctx context.Context, from *common.Address, method string, args []abicodec.EncodedValue) ([]any, error) {
	m, err := c.Method(method)
	if err != nil {
		return nil, err
	}
	data, err := c.EncodeABI(method, args)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{To: &c.address, Data: data}
	if from != nil {
		msg.From = *from
	}
	out, err := c.backend.CallContract(ctx, msg)
	if err != nil {
		return nil, err
	}
	return m.Outputs.Unpack(out)
}

// EstimateGas simulates a transaction carrying data to the contract.
func (c *Contract) EstimateGas(ctx context.Context, from common.Address, data []byte, value *big.Int) (uint64, error) {
	return c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &c.address,
		Data:  data,
		Value: value,
	})
}

// SendOpts describe a state-changing call.
type SendOpts struct {
	From     common.Address
	GasLimit uint64
	Value    *big.Int
	Data     []byte
}

// Send submits a transaction to the contract and waits for its receipt.
// A reverted transaction is not an error: its receipt has a failed status.
func (c *Contract) Send(ctx context.Context, opts SendOpts, poll time.Duration) (common.Hash, *types.Receipt, error) {
	to := c.address
	return submit(ctx, c.backend, TxArgs{
		From:  opts.From,
		To:    &to,
		Gas:   hexutil.Uint64(opts.GasLimit),
		Value: hexBig(opts.Value),
		Data:  opts.Data,
	}, poll)
}

// Deploy submits a contract creation transaction and waits for its receipt.
// data holds the bytecode followed by the encoded constructor arguments.
func Deploy(ctx context.Context, backend Backend, from common.Address, gasLimit uint64, data []byte, value *big.Int, poll time.Duration) (common.Hash, *types.Receipt, error) {
	return submit(ctx, backend, TxArgs{
		From:  from,
		Gas:   hexutil.Uint64(gasLimit),
		Value: hexBig(value),
		Data:  data,
	}, poll)
}

func submit(ctx context.Context, backend Backend, args TxArgs, poll time.Duration) (common.Hash, *types.Receipt, error) {
	hash, err := backend.SendTransaction(ctx, args)
	if err != nil {
		return common.Hash{}, nil, err
	}
	receipt, err := WaitReceipt(ctx, backend, hash, poll)
	if err != nil {
		return hash, nil, err
	}
	return hash, receipt, nil
}

func hexBig(v *big.Int) *hexutil.Big {
	if v == nil {
		return nil
	}
	return (*hexutil.Big)(v)
}
