package miner

import (
	"github.com/ethereum/go-ethereum/log"
)

// maxBlockGasSelector keeps the gas used by the block under an operator
// defined limit that may be lower than the protocol gas limit.
type maxBlockGasSelector struct {
	maxGasPerBlock         uint64
	cumulativeBlockGasUsed uint64
}

func newMaxBlockGasSelector(maxGasPerBlock uint64) *maxBlockGasSelector {
	return &maxBlockGasSelector{maxGasPerBlock: maxGasPerBlock}
}

// EvaluatePreProcessing always selects, gas used is only known after execution.
func (s *maxBlockGasSelector) EvaluatePreProcessing(*EvaluationContext) SelectionResult {
	return TxSelected
}

func (s *maxBlockGasSelector) EvaluatePostProcessing(evalCtx *EvaluationContext, res ProcessingResult) SelectionResult {
	if res.GasUsed > s.maxGasPerBlock {
		log.Trace("Not selecting transaction, gas used greater than max user gas per block, removing it from the txpool",
			"hash", evalCtx.Tx.Hash(), "gasUsed", res.GasUsed, "maxGasPerBlock", s.maxGasPerBlock)
		return Reject(ReasonExceedsMaxBlockGas, Permanent)
	}

	// an overflowing sum always exceeds the limit
	if cumulative, ok := safeAdd(s.cumulativeBlockGasUsed, res.GasUsed); !ok || cumulative > s.maxGasPerBlock {
		log.Trace("Not selecting transaction, cumulative block gas used greater than max user gas per block, skipping it",
			"hash", evalCtx.Tx.Hash(), "cumulativeGasUsed", s.cumulativeBlockGasUsed, "gasUsed", res.GasUsed,
			"maxGasPerBlock", s.maxGasPerBlock)
		return Reject(ReasonTooLargeForRemainingGas, Deferred)
	}
	return TxSelected
}

func (s *maxBlockGasSelector) OnTransactionSelected(_ *EvaluationContext, res ProcessingResult) {
	s.cumulativeBlockGasUsed, _ = safeAdd(s.cumulativeBlockGasUsed, res.GasUsed)
}

// CumulativeGasUsed returns the gas used by the transactions selected so far.
func (s *maxBlockGasSelector) CumulativeGasUsed() uint64 {
	return s.cumulativeBlockGasUsed
}
