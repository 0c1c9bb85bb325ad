package miner

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/flashbots/linea-sequencer/core/txpool"
)

// RejectReason identifies the selector rule a transaction failed.
type RejectReason uint8

const (
	reasonNone RejectReason = iota
	ReasonExceedsMaxBlockGas
	ReasonTooLargeForRemainingGas
	ReasonTxCallDataTooBig
	ReasonBlockCallDataOverflow
	ReasonBundleOutsideTimeWindow
	ReasonBundleAlreadyFailed
	ReasonBundleTxReverted
	ReasonBundleGasExceeded
)

var reasonNames = map[RejectReason]string{
	reasonNone:                    "SELECTED",
	ReasonExceedsMaxBlockGas:      "TX_GAS_EXCEEDS_USER_MAX_BLOCK_GAS",
	ReasonTooLargeForRemainingGas: "TX_TOO_LARGE_FOR_REMAINING_USER_GAS",
	ReasonTxCallDataTooBig:        "TX_CALLDATA_EXCEEDS_MAX_BLOCK_CALLDATA",
	ReasonBlockCallDataOverflow:   "BLOCK_CALLDATA_OVERFLOW",
	ReasonBundleOutsideTimeWindow: "BUNDLE_OUTSIDE_TIME_WINDOW",
	ReasonBundleAlreadyFailed:     "BUNDLE_ALREADY_FAILED",
	ReasonBundleTxReverted:        "BUNDLE_TX_REVERTED",
	ReasonBundleGasExceeded:       "BUNDLE_GAS_EXCEEDS_MAX_BUNDLE_BLOCK_GAS",
}

func (r RejectReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
}

// Permanence tells the caller what to do with a rejected transaction.
type Permanence uint8

const (
	// Deferred rejections only apply to the current block building attempt.
	Deferred Permanence = iota
	// Permanent rejections mean the transaction can never pass the selector
	// with the current configuration and should be dropped from the pool.
	Permanent
)

func (p Permanence) String() string {
	if p == Permanent {
		return "permanent"
	}
	return "deferred"
}

// SelectionResult is the outcome of evaluating a transaction. The zero value
// is TxSelected.
type SelectionResult struct {
	Reason     RejectReason
	Permanence Permanence
}

var TxSelected = SelectionResult{}

func Reject(reason RejectReason, permanence Permanence) SelectionResult {
	return SelectionResult{Reason: reason, Permanence: permanence}
}

func (r SelectionResult) Selected() bool {
	return r.Reason == reasonNone
}

// Discard reports whether the transaction should be removed from the pool.
func (r SelectionResult) Discard() bool {
	return !r.Selected() && r.Permanence == Permanent
}

func (r SelectionResult) String() string {
	if r.Selected() {
		return r.Reason.String()
	}
	return fmt.Sprintf("%s(%s)", r.Reason, r.Permanence)
}

// EvaluationContext describes the candidate transaction and the block it is
// evaluated for.
type EvaluationContext struct {
	Tx          *txpool.PendingTransaction
	BlockNumber uint64
	Timestamp   uint64
}

// ProcessingResult carries the facts learned by executing the candidate.
type ProcessingResult struct {
	GasUsed uint64
	Failed  bool
}

// TransactionSelector is a single admission rule. Pre-processing runs before
// the candidate is executed, post-processing after it with the actual usage.
// OnTransactionSelected is only called once every selector accepted the
// candidate and is the only place accounting state may change.
type TransactionSelector interface {
	EvaluatePreProcessing(evalCtx *EvaluationContext) SelectionResult
	EvaluatePostProcessing(evalCtx *EvaluationContext, res ProcessingResult) SelectionResult
	OnTransactionSelected(evalCtx *EvaluationContext, res ProcessingResult)
}

// TransactionNotSelectedHook is implemented by selectors that need to know
// when a candidate was rejected, by them or by another selector.
type TransactionNotSelectedHook interface {
	OnTransactionNotSelected(evalCtx *EvaluationContext, result SelectionResult)
}

// safeAdd returns a+b, or math.MaxUint64 and false if the sum overflows.
func safeAdd(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64, false
	}
	return sum, true
}
