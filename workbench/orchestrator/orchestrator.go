// Package orchestrator drives contract interaction over the shared
// connection: read calls, unsigned transaction building, submission and
// deployment. Every submission lands in the session history.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"github.com/pushchain/piet/workbench/abicodec"
	"github.com/pushchain/piet/workbench/chains/evm"
	"github.com/pushchain/piet/workbench/connection"
	"github.com/pushchain/piet/workbench/errors"
	"github.com/pushchain/piet/workbench/history"
	"github.com/pushchain/piet/workbench/metrics"
)

// Orchestrator runs contract operations against the connection it was
// built with.
type Orchestrator struct {
	conn    *connection.Manager
	history *history.Log
	metrics *metrics.Metrics
	logger  zerolog.Logger

	now            func() time.Time
	pollInterval   time.Duration
	receiptTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records call and history metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithReceiptPolling sets how often receipts are polled and how long to
// wait for one. A zero timeout waits until the context ends.
func WithReceiptPolling(interval, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollInterval = interval
		o.receiptTimeout = timeout
	}
}

// New returns an Orchestrator over conn that appends to log.
func New(conn *connection.Manager, log *history.Log, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		conn:         conn,
		history:      log,
		logger:       logger.With().Str("component", "orchestrator").Logger(),
		now:          time.Now,
		pollInterval: evm.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.metrics.Attach(log)
	return o
}

// History returns the session log.
func (o *Orchestrator) History() *history.Log { return o.history }

// Connection returns the shared connection.
func (o *Orchestrator) Connection() *connection.Manager { return o.conn }

// PendingTransaction is a transaction ready for signing. Gas is nil when
// estimation failed.
type PendingTransaction struct {
	From  common.Address `json:"from"`
	Gas   *uint64        `json:"gas"`
	Data  hexutil.Bytes  `json:"data"`
	Nonce uint64         `json:"nonce"`
	Value *big.Int       `json:"value"`
}

// DeploymentData describes a contract creation. Data holds the bytecode
// followed by the encoded constructor arguments.
type DeploymentData struct {
	GasLimit uint64
	Data     []byte
	Value    *big.Int
}

// GasLimit returns the submitted limit for an estimate: floor(g * 1.5).
func GasLimit(estimate uint64) uint64 {
	return estimate + estimate/2
}

// CallRead executes fn as a read call and returns one display string per
// declared return parameter. Failures never change the number of slots:
// a provider error fills every slot with its message, a decode error only
// the slot it happened in.
func (o *Orchestrator) CallRead(ctx context.Context, fn abicodec.ContractFunction, address common.Address, contractABI abi.ABI, params []string) []string {
	start := time.Now()
	out, err := o.callRead(ctx, fn, address, contractABI, params)
	o.metrics.ObserveRead(err, time.Since(start))
	if err != nil {
		o.logger.Debug().Err(err).Str("function", fn.Name).Str("address", address.Hex()).Msg("read call failed")
		return fill(len(fn.ReturnParams), errors.Message(err))
	}
	return out
}

func (o *Orchestrator) callRead(ctx context.Context, fn abicodec.ContractFunction, address common.Address, contractABI abi.ABI, params []string) ([]string, error) {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return nil, errNotConnected()
	}
	args, err := abicodec.EncodeArguments(fn, params)
	if err != nil {
		return nil, err
	}

	contract := evm.NewContract(snap.Backend, contractABI, address)
	method, err := contract.Method(methodKey(fn))
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	values, err := contract.Call(ctx, snap.SelectedAccount, methodKey(fn), args)
	if err != nil {
		return nil, err
	}

	slots := len(fn.ReturnParams)
	if slots == 1 && len(method.Outputs) > 0 && len(values) > 0 {
		t := abicodec.FromABIType(method.Outputs[0].Type)
		return []string{display(t, values[0])}, nil
	}

	out := make([]string, slots)
	for i := range out {
		if i >= len(values) {
			out[i] = fmt.Sprintf("no value returned for %s", slotName(fn.ReturnParams[i], i))
			continue
		}
		out[i] = display(fn.ReturnParams[i].Type, values[i])
	}
	return out, nil
}

// display renders one slot, turning a decode failure into its message.
func display(t abicodec.SolidityType, raw any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("failed to decode %s: %v", t, r)
		}
	}()
	out, err := abicodec.Display(t, raw)
	if err != nil {
		return errors.Message(err)
	}
	return out
}

// BuildUnsignedTx assembles the transaction for fn without submitting it.
func (o *Orchestrator) BuildUnsignedTx(ctx context.Context, fn abicodec.ContractFunction, address common.Address, contractABI abi.ABI, params []string, value *big.Int) (*PendingTransaction, error) {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return nil, errNotConnected()
	}
	contract, data, err := encodeCall(snap, fn, address, contractABI, params)
	if err != nil {
		return nil, err
	}
	from, err := sender(ctx, snap)
	if err != nil {
		return nil, err
	}

	tx := &PendingTransaction{From: from, Data: data, Value: value}
	if estimate, err := contract.EstimateGas(ctx, from, data, value); err != nil {
		o.metrics.EstimationFailed("build")
		o.logger.Debug().Err(err).Str("function", fn.Name).Msg("gas estimation failed, gas left unset")
	} else {
		gas := GasLimit(estimate)
		tx.Gas = &gas
	}

	nonce, err := snap.Backend.NonceAt(ctx, from)
	if err != nil {
		return nil, errors.NewProviderError(snap.NetVersion, "failed to read transaction count", err)
	}
	tx.Nonce = nonce
	return tx, nil
}

// Send estimates gas afresh, submits fn with 1.5 times the estimate and
// waits for the receipt. Estimation failure aborts the send. Once the
// provider has accepted the transaction a record is appended, even if
// waiting for the receipt then fails.
func (o *Orchestrator) Send(ctx context.Context, fn abicodec.ContractFunction, address common.Address, contractABI abi.ABI, params []string, value *big.Int) (*history.TransactionRecord, error) {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return nil, errNotConnected()
	}
	contract, data, err := encodeCall(snap, fn, address, contractABI, params)
	if err != nil {
		return nil, err
	}
	from, err := sender(ctx, snap)
	if err != nil {
		return nil, err
	}

	estimate, err := contract.EstimateGas(ctx, from, data, value)
	if err != nil {
		o.metrics.EstimationFailed("send")
		return nil, errors.NewEstimationError(snap.NetVersion, "gas estimation failed", err)
	}
	limit := GasLimit(estimate)

	submittedAt := o.now()
	waitCtx, cancel := o.receiptContext(ctx)
	defer cancel()
	hash, receipt, err := contract.Send(waitCtx, evm.SendOpts{From: from, GasLimit: limit, Value: value, Data: data}, o.pollInterval)
	if err != nil && hash == (common.Hash{}) {
		return nil, errors.NewProviderError(snap.NetVersion, "failed to submit transaction", err)
	}

	rec := history.TransactionRecord{
		Result:       history.Result{Receipt: receipt, TxHash: hash, Err: err},
		SubmittedAt:  submittedAt,
		FunctionName: fn.Name,
		Parameters:   params,
	}
	o.history.Append(rec)
	o.logger.Info().
		Str("function", fn.Name).
		Str("tx_hash", hash.Hex()).
		Uint64("gas_limit", limit).
		Bool("reverted", rec.Result.Reverted()).
		Msg("transaction recorded")

	if err != nil {
		return &rec, errors.NewProviderError(snap.NetVersion, "failed waiting for receipt of "+hash.Hex(), err)
	}
	return &rec, nil
}

// Deploy submits a contract creation with the caller's gas limit. It never
// fails: any error, the provider's included, becomes the record's result and
// the record is always appended.
func (o *Orchestrator) Deploy(ctx context.Context, d DeploymentData) *history.TransactionRecord {
	rec := history.TransactionRecord{SubmittedAt: o.now()}
	rec.Result = o.deploy(ctx, d)
	o.history.Append(rec)

	ev := o.logger.Info()
	if rec.Result.Err != nil {
		ev = o.logger.Warn().Err(rec.Result.Err)
	}
	ev.Uint64("gas_limit", d.GasLimit).Str("tx_hash", rec.Result.TxHash.Hex()).Msg("deployment recorded")
	return &rec
}

func (o *Orchestrator) deploy(ctx context.Context, d DeploymentData) history.Result {
	snap := o.conn.Snapshot()
	if !snap.Connected() {
		return history.Result{Err: errNotConnected()}
	}
	from, err := sender(ctx, snap)
	if err != nil {
		return history.Result{Err: err}
	}

	waitCtx, cancel := o.receiptContext(ctx)
	defer cancel()
	hash, receipt, err := evm.Deploy(waitCtx, snap.Backend, from, d.GasLimit, d.Data, d.Value, o.pollInterval)
	return history.Result{Receipt: receipt, TxHash: hash, Err: err}
}

func (o *Orchestrator) receiptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.receiptTimeout > 0 {
		return context.WithTimeout(ctx, o.receiptTimeout)
	}
	return context.WithCancel(ctx)
}

func encodeCall(snap connection.State, fn abicodec.ContractFunction, address common.Address, contractABI abi.ABI, params []string) (*evm.Contract, []byte, error) {
	args, err := abicodec.EncodeArguments(fn, params)
	if err != nil {
		return nil, nil, err
	}
	contract := evm.NewContract(snap.Backend, contractABI, address)
	data, err := contract.EncodeABI(methodKey(fn), args)
	if err != nil {
		var coded *errors.CodedError
		if errors.As(err, &coded) {
			return nil, nil, err
		}
		return nil, nil, errors.NewMalformedInputError("", "failed to encode call to "+fn.Name, err)
	}
	return contract, data, nil
}

// sender is the selected account, or the provider's first one.
func sender(ctx context.Context, snap connection.State) (common.Address, error) {
	if snap.SelectedAccount != nil {
		return *snap.SelectedAccount, nil
	}
	accounts, err := snap.Backend.Accounts(ctx)
	if err != nil {
		return common.Address{}, errors.NewProviderError(snap.NetVersion, "failed to list accounts", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, errors.NewProviderError(snap.NetVersion, "provider has no accounts", nil)
	}
	return accounts[0], nil
}

// methodKey prefers the canonical signature so overloads resolve.
func methodKey(fn abicodec.ContractFunction) string {
	if fn.Signature != "" {
		return fn.Signature
	}
	return fn.Name
}

func slotName(p abicodec.Parameter, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("output %d", i)
}

func fill(n int, msg string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = msg
	}
	return out
}

func errNotConnected() error {
	return errors.NewConfigurationError("not connected to a blockchain", nil)
}
