package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// fakeNode answers JSON-RPC requests from a fixed table of results.
type fakeNode struct {
	mu      sync.Mutex
	results map[string]any
	errors  map[string]string
	seen    []rpcRequest
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.seen = append(n.seen, req)
	result, ok := n.results[req.Method]
	msg, failed := n.errors[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case failed:
		resp["error"] = map[string]any{"code": -32000, "message": msg}
	case ok:
		resp["result"] = result
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *fakeNode) params(method string) []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, req := range n.seen {
		if req.Method == method {
			return req.Params
		}
	}
	return nil
}

func newFakeNode(t *testing.T) (*fakeNode, *RPCProvider) {
	t.Helper()
	node := &fakeNode{
		results: map[string]any{
			"eth_chainId":               "0x539",
			"net_version":               "1337",
			"eth_accounts":              []string{alice.Hex()},
			"eth_getBalance":            "0x64",
			"eth_getTransactionCount":   "0x5",
			"eth_estimateGas":           "0x5208",
			"eth_call":                  "0x000000000000000000000000000000000000000000000000000000000000002a",
			"eth_sendTransaction":       "0x00000000000000000000000000000000000000000000000000000000000000ab",
			"eth_getTransactionReceipt": nil,
			"eth_blockNumber":           "0x10",
		},
		errors: map[string]string{},
	}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	p, err := Dial(context.Background(), srv.URL, Options{Logger: zerolog.New(zerolog.NewTestWriter(t))})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return node, p
}

func TestRPCProvider(t *testing.T) {
	ctx := context.Background()
	node, p := newFakeNode(t)

	accounts, err := p.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice}, accounts)

	balance, err := p.BalanceAt(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, balance.Cmp(big.NewInt(100)))

	nonce, err := p.NonceAt(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), nonce)

	gas, err := p.EstimateGas(ctx, ethereum.CallMsg{From: alice, To: &tokenAddress})
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)

	out, err := p.CallContract(ctx, ethereum.CallMsg{To: &tokenAddress})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), new(big.Int).SetBytes(out))

	version, err := p.NetVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1337", version)

	hash, err := p.SendTransaction(ctx, TxArgs{From: alice, To: &tokenAddress, Gas: 75000})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xab"), hash)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(node.params("eth_sendTransaction")[0], &sent))
	assert.Equal(t, "0x124f8", sent["gas"])
	assert.NotContains(t, sent, "value")

	_, err = p.TransactionReceipt(ctx, hash)
	assert.ErrorIs(t, err, ethereum.NotFound)

	rawOut, err := p.RawCall(ctx, "eth_blockNumber")
	require.NoError(t, err)
	assert.JSONEq(t, `"0x10"`, string(rawOut))
}

func TestRPCProviderErrors(t *testing.T) {
	node, p := newFakeNode(t)
	node.mu.Lock()
	node.errors["eth_call"] = "execution reverted: insufficient balance"
	node.mu.Unlock()

	_, err := p.CallContract(context.Background(), ethereum.CallMsg{To: &tokenAddress})
	require.Error(t, err)
	assert.Equal(t, "execution reverted: insufficient balance", err.Error())

	_, err = p.RawCall(context.Background(), "eth_unknownMethod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestRPCProviderRateLimit(t *testing.T) {
	srv := httptest.NewServer(&fakeNode{results: map[string]any{"net_version": "1"}})
	defer srv.Close()

	p, err := Dial(context.Background(), srv.URL, Options{RequestsPerSecond: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.limiter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.NetVersion(ctx)
	assert.Error(t, err)
}

func TestDialInvalidURL(t *testing.T) {
	_, err := Dial(context.Background(), "ftp://localhost:1", Options{Logger: zerolog.Nop()})
	assert.Error(t, err)
}
