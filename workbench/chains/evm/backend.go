package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Backend is the network provider a connection talks to. Signing is left
// to the node or wallet behind it: transactions are submitted with
// eth_sendTransaction from an account the provider manages.
type Backend interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	NonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	RawCall(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	NetVersion(ctx context.Context) (string, error)
	Close()
}

// TxArgs are the eth_sendTransaction parameters. A nil To creates a contract.
type TxArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to,omitempty"`
	Gas   hexutil.Uint64  `json:"gas"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Nonce *hexutil.Uint64 `json:"nonce,omitempty"`
}

// Options tune a dialed provider.
type Options struct {
	// RequestsPerSecond caps outgoing requests; 0 disables the limit.
	RequestsPerSecond float64
	Logger            zerolog.Logger
}

// RPCProvider is a Backend over a JSON-RPC endpoint (http, https, ws or wss).
type RPCProvider struct {
	url     string
	rpc     *rpc.Client
	eth     *ethclient.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Dial connects to url and returns a provider for it.
func Dial(ctx context.Context, url string, opts Options) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	p := NewRPCProvider(url, client, opts)

	chainID, err := p.eth.ChainID(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to read chain ID, proceeding anyway")
	} else {
		p.logger.Info().Str("chain_id", chainID.String()).Msg("connected to RPC endpoint")
	}
	return p, nil
}

// NewRPCProvider wraps an already connected rpc client.
func NewRPCProvider(url string, client *rpc.Client, opts Options) *RPCProvider {
	p := &RPCProvider{
		url: url,
		rpc: client,
		eth: ethclient.NewClient(client),
		logger: opts.Logger.With().
			Str("component", "evm_provider").
			Str("url", url).
			Logger(),
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return p
}

// URL returns the endpoint the provider was created for.
func (p *RPCProvider) URL() string { return p.url }

func (p *RPCProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	var accounts []common.Address
	if err := p.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *RPCProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.eth.BalanceAt(ctx, account, nil)
}

func (p *RPCProvider) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.eth.CallContract(ctx, msg, nil)
}

func (p *RPCProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if err := p.wait(ctx); err != nil {
		return 0, err
	}
	return p.eth.EstimateGas(ctx, msg)
}

func (p *RPCProvider) NonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := p.wait(ctx); err != nil {
		return 0, err
	}
	return p.eth.NonceAt(ctx, account, nil)
}

func (p *RPCProvider) SendTransaction(ctx context.Context, args TxArgs) (common.Hash, error) {
	if err := p.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := p.rpc.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	p.logger.Debug().Str("tx_hash", hash.Hex()).Msg("transaction submitted")
	return hash, nil
}

func (p *RPCProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.eth.TransactionReceipt(ctx, hash)
}

// RawCall forwards an arbitrary JSON-RPC request and returns the undecoded
// result.
func (p *RPCProvider) RawCall(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	var result json.RawMessage
	if err := p.rpc.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *RPCProvider) NetVersion(ctx context.Context) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	var version string
	if err := p.rpc.CallContext(ctx, &version, "net_version"); err != nil {
		return "", err
	}
	return version, nil
}

func (p *RPCProvider) Close() {
	p.rpc.Close()
}
