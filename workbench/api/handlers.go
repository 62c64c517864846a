package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"

	"github.com/pushchain/piet/workbench/abicodec"
	"github.com/pushchain/piet/workbench/connection"
	"github.com/pushchain/piet/workbench/errors"
	"github.com/pushchain/piet/workbench/orchestrator"
	"github.com/pushchain/piet/workbench/registry"
	"github.com/pushchain/piet/workbench/session"
)

// maxBodyBytes bounds request bodies, deployment payloads included.
const maxBodyBytes = 8 << 20

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleGetConnection handles GET /api/v1/connection
func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ConnectionResponse{Connection: s.orch.Connection().Snapshot().View()})
}

// handleReconfigure handles POST /api/v1/connection. The state is returned
// even when the reconfiguration failed.
func (s *Server) handleReconfigure(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := connection.ParseMode(req.Mode)
	if err != nil {
		writeError(w, errors.NewValidationError(err.Error()))
		return
	}

	state, err := s.orch.Connection().Reconfigure(r.Context(), connection.Settings{Mode: mode, RPCURL: req.RPCURL})
	resp := ConnectionResponse{Connection: state.View()}
	status := http.StatusOK
	if err != nil {
		resp.Error = errors.Message(err)
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

// handleSelectAccount handles POST /api/v1/connection/account
func (s *Server) handleSelectAccount(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Account == "" {
		writeJSON(w, http.StatusOK, ConnectionResponse{Connection: s.orch.Connection().UseDefaultAccount().View()})
		return
	}
	if !common.IsHexAddress(req.Account) {
		writeError(w, errors.NewValidationError(fmt.Sprintf("invalid address %q", req.Account)))
		return
	}

	state, err := s.orch.Connection().SelectAccount(r.Context(), common.HexToAddress(req.Account))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionResponse{Connection: state.View()})
}

// handleHistory handles GET /api/v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, QueryResponse{Data: s.orch.History().All()})
}

// handleAccounts handles GET /api/v1/accounts
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.orch.Accounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: accounts})
}

// handleBalance handles GET /api/v1/balance/{address}
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) {
		writeError(w, errors.NewValidationError(fmt.Sprintf("invalid address %q", raw)))
		return
	}
	addr := common.HexToAddress(raw)

	balance, err := s.orch.Balance(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: BalanceResponse{Address: addr.Hex(), Wei: balance.String()}})
}

// handleRPC handles POST /api/v1/rpc. Provider failures are reported in
// the JSON-RPC envelope rather than as an HTTP error.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Params == nil {
		req.Params = []any{}
	}
	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}

	resp := RPCResponse{JSONRPC: "2.0", ID: id}
	out, err := s.orch.RawQuery(r.Context(), req.Method, req.Params)
	if err != nil {
		resp.Error = &RPCError{Code: -32000, Message: errors.Message(err)}
	} else {
		resp.Result = out
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleContracts handles GET /api/v1/contracts
func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	entries, err := s.contracts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: entries})
}

// handleCall handles POST /api/v1/contracts/{name}/call/{function}. The
// response always carries one result per return parameter.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolve(w, r)
	if !ok {
		return
	}
	results := s.orch.CallRead(r.Context(), target.fn, target.address, target.contractABI, target.req.Params)
	writeJSON(w, http.StatusOK, CallResponse{Results: results})
}

// handleBuildTx handles POST /api/v1/contracts/{name}/tx/{function}
func (s *Server) handleBuildTx(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolve(w, r)
	if !ok {
		return
	}
	value, err := orchestrator.ParseValue(target.req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := s.orch.BuildUnsignedTx(r.Context(), target.fn, target.address, target.contractABI, target.req.Params, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: tx})
}

// handleSend handles POST /api/v1/contracts/{name}/send/{function}
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	target, ok := s.resolve(w, r)
	if !ok {
		return
	}
	value, err := orchestrator.ParseValue(target.req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.orch.Send(r.Context(), target.fn, target.address, target.contractABI, target.req.Params, value)
	if rec == nil {
		writeError(w, err)
		return
	}
	resp := SendResponse{Record: rec}
	status := http.StatusOK
	if err != nil {
		resp.Error = errors.Message(err)
		status = statusFor(err)
	}
	writeJSON(w, status, resp)
}

// handleDeploy handles POST /api/v1/deploy. The deployment is recorded
// whatever its outcome, so the record is returned with 200 and its result
// carries any error.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GasLimit == 0 {
		writeError(w, errors.NewValidationError("gas_limit is required"))
		return
	}
	value, err := orchestrator.ParseValue(req.Value)
	if err != nil {
		writeError(w, err)
		return
	}

	var data []byte
	switch {
	case req.Contract != "":
		entry, err := s.contracts.Get(r.Context(), req.Contract)
		if err != nil {
			writeError(w, err)
			return
		}
		if data, err = registry.DeploymentData(entry, req.Args); err != nil {
			writeError(w, err)
			return
		}
	case req.Data != "":
		if data, err = hexutil.Decode(req.Data); err != nil {
			writeError(w, errors.NewMalformedInputError("data", "invalid deployment data", err))
			return
		}
	default:
		writeError(w, errors.NewValidationError("contract or data is required"))
		return
	}

	rec := s.orch.Deploy(r.Context(), orchestrator.DeploymentData{GasLimit: req.GasLimit, Data: data, Value: value})
	if req.Contract != "" && rec.Result.Receipt != nil && rec.Result.Receipt.ContractAddress != (common.Address{}) {
		network := s.orch.Connection().Snapshot().NetVersion
		if err := s.contracts.SetAddress(r.Context(), req.Contract, rec.Result.Receipt.ContractAddress, network); err != nil {
			s.logger.Warn().Err(err).Str("contract", req.Contract).Msg("failed to record deployed address")
		}
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: rec})
}

// handleExport handles GET /api/v1/session/export?selected=<name>
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := s.contracts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	export, err := session.FromRegistry(entries, nil, r.URL.Query().Get("selected"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session.FileName(s.now())))
	if err := session.Write(w, export); err != nil {
		s.logger.Error().Err(err).Msg("failed to write session export")
	}
}

type callTarget struct {
	req         CallRequest
	fn          abicodec.ContractFunction
	contractABI abi.ABI
	address     common.Address
}

// resolve looks up the contract and function named in the path and decodes
// the request body.
func (s *Server) resolve(w http.ResponseWriter, r *http.Request) (callTarget, bool) {
	var target callTarget
	if !decodeBody(w, r, &target.req) {
		return target, false
	}
	vars := mux.Vars(r)

	entry, err := s.contracts.Get(r.Context(), vars["name"])
	if err != nil {
		writeError(w, err)
		return target, false
	}
	if target.address, err = registry.Address(entry); err != nil {
		writeError(w, err)
		return target, false
	}
	if target.fn, target.contractABI, err = registry.Function(entry, vars["function"]); err != nil {
		writeError(w, err)
		return target, false
	}
	return target, true
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errors.NewValidationError("failed to read request body"))
		return false
	}
	if strings.TrimSpace(string(body)) == "" {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, errors.NewValidationError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: errors.Message(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.IsCode(err, errors.ErrCodeMalformedInput), errors.IsCode(err, errors.ErrCodeValidation):
		return http.StatusBadRequest
	case errors.IsCode(err, errors.ErrCodeEstimation):
		return http.StatusUnprocessableEntity
	case errors.IsCode(err, errors.ErrCodeConfiguration):
		return http.StatusServiceUnavailable
	case errors.IsCode(err, errors.ErrCodeProvider), errors.IsCode(err, errors.ErrCodeTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
