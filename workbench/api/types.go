package api

import (
	"encoding/json"

	"github.com/pushchain/piet/workbench/connection"
)

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConnectionResponse carries the connection state and, after a failed
// reconfiguration, the error that forced it to none.
type ConnectionResponse struct {
	Connection connection.View `json:"connection"`
	Error      string          `json:"error,omitempty"`
}

// ConnectionRequest is the body of POST /api/v1/connection
type ConnectionRequest struct {
	Mode   string `json:"mode"`
	RPCURL string `json:"rpc_url"`
}

// AccountRequest is the body of POST /api/v1/connection/account. An empty
// account selects the provider default.
type AccountRequest struct {
	Account string `json:"account"`
}

// CallRequest is the body of the contract function endpoints
type CallRequest struct {
	Params []string `json:"params"`
	Value  string   `json:"value"`
}

// CallResponse holds one display string per return parameter
type CallResponse struct {
	Results []string `json:"results"`
}

// SendResponse is the recorded transaction, with the error when waiting for
// the receipt failed after submission.
type SendResponse struct {
	Record interface{} `json:"record"`
	Error  string      `json:"error,omitempty"`
}

// DeployRequest is the body of POST /api/v1/deploy. Either Contract names a
// registered contract with bytecode, whose constructor takes Args, or Data
// carries the full creation payload.
type DeployRequest struct {
	Contract string   `json:"contract"`
	Args     []string `json:"args"`
	Data     string   `json:"data"`
	GasLimit uint64   `json:"gas_limit"`
	Value    string   `json:"value"`
}

// BalanceResponse is the wei balance of an address
type BalanceResponse struct {
	Address string `json:"address"`
	Wei     string `json:"wei"`
}

// RPCRequest is a JSON-RPC 2.0 request forwarded to the provider
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  []any           `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCResponse is a JSON-RPC 2.0 response. The request id is echoed back.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}
