// Package history keeps the session's record of submitted transactions and
// deployments. The log is append-only and lives in memory for as long as
// the process that owns it.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Result is the outcome of a submission: a receipt, or the error the
// provider returned.
type Result struct {
	Receipt *types.Receipt
	TxHash  common.Hash
	Err     error
}

// Failed reports whether the submission produced no receipt.
func (r Result) Failed() bool { return r.Err != nil }

// Reverted reports whether the transaction was mined with a failed status.
func (r Result) Reverted() bool {
	return r.Receipt != nil && r.Receipt.Status == types.ReceiptStatusFailed
}

// TransactionRecord is one entry of the log. FunctionName is empty for
// deployments.
type TransactionRecord struct {
	Result       Result
	SubmittedAt  time.Time
	FunctionName string
	Parameters   []string
}

// IsDeployment reports whether the record is a contract creation.
func (r TransactionRecord) IsDeployment() bool { return r.FunctionName == "" }

type resultView struct {
	TxHash          *common.Hash    `json:"tx_hash,omitempty"`
	Status          *uint64         `json:"status,omitempty"`
	GasUsed         uint64          `json:"gas_used,omitempty"`
	BlockNumber     string          `json:"block_number,omitempty"`
	ContractAddress *common.Address `json:"contract_address,omitempty"`
	Error           string          `json:"error,omitempty"`
}

type recordView struct {
	Date         string     `json:"date"`
	Time         string     `json:"time"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	FunctionName *string    `json:"function_name"`
	Parameters   []string   `json:"parameters"`
	Result       resultView `json:"result"`
}

func (r TransactionRecord) MarshalJSON() ([]byte, error) {
	view := recordView{
		Date:        r.SubmittedAt.Format("2006-01-02"),
		Time:        r.SubmittedAt.Format("15:04:05"),
		SubmittedAt: r.SubmittedAt,
		Parameters:  r.Parameters,
	}
	if view.Parameters == nil {
		view.Parameters = []string{}
	}
	if r.FunctionName != "" {
		name := r.FunctionName
		view.FunctionName = &name
	}
	if r.Result.TxHash != (common.Hash{}) {
		h := r.Result.TxHash
		view.Result.TxHash = &h
	}
	if r.Result.Err != nil {
		view.Result.Error = r.Result.Err.Error()
	}
	if rc := r.Result.Receipt; rc != nil {
		status := rc.Status
		view.Result.Status = &status
		view.Result.GasUsed = rc.GasUsed
		if rc.BlockNumber != nil {
			view.Result.BlockNumber = rc.BlockNumber.String()
		}
		if rc.ContractAddress != (common.Address{}) {
			addr := rc.ContractAddress
			view.Result.ContractAddress = &addr
		}
	}
	return json.Marshal(view)
}

// Observer is notified after each append.
type Observer func(TransactionRecord)

// Log is an ordered, append-only sequence of records.
type Log struct {
	mu        sync.RWMutex
	records   []TransactionRecord
	observers []Observer
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds r to the end of the log.
func (l *Log) Append(r TransactionRecord) {
	if r.Parameters != nil {
		r.Parameters = append([]string(nil), r.Parameters...)
	}

	l.mu.Lock()
	l.records = append(l.records, r)
	observers := l.observers
	l.mu.Unlock()

	for _, fn := range observers {
		fn(r)
	}
}

// All returns the records oldest first. The returned slice is a copy.
func (l *Log) All() []TransactionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TransactionRecord, len(l.records))
	copy(out, l.records)
	for i := range out {
		if out[i].Parameters != nil {
			out[i].Parameters = append([]string(nil), out[i].Parameters...)
		}
	}
	return out
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// OnAppend registers fn to run after every append. fn runs on the
// appending goroutine, outside the log's lock.
func (l *Log) OnAppend(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers[:len(l.observers):len(l.observers)], fn)
}
