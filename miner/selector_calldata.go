package miner

import (
	"github.com/ethereum/go-ethereum/log"
)

// maxBlockCallDataSelector bounds the total calldata of the block. Calldata
// size is known before execution so the whole check happens in
// pre-processing.
type maxBlockCallDataSelector struct {
	maxBlockCallDataSize uint64
	blockCallDataSize    uint64
}

func newMaxBlockCallDataSelector(maxBlockCallDataSize uint64) *maxBlockCallDataSelector {
	return &maxBlockCallDataSelector{maxBlockCallDataSize: maxBlockCallDataSize}
}

func (s *maxBlockCallDataSelector) EvaluatePreProcessing(evalCtx *EvaluationContext) SelectionResult {
	size := uint64(len(evalCtx.Tx.Tx.Data()))
	if size > s.maxBlockCallDataSize {
		log.Trace("Not selecting transaction, calldata larger than max block calldata, removing it from the txpool",
			"hash", evalCtx.Tx.Hash(), "callDataSize", size, "maxBlockCallDataSize", s.maxBlockCallDataSize)
		return Reject(ReasonTxCallDataTooBig, Permanent)
	}
	if cumulative, ok := safeAdd(s.blockCallDataSize, size); !ok || cumulative > s.maxBlockCallDataSize {
		log.Trace("Not selecting transaction, block calldata would overflow",
			"hash", evalCtx.Tx.Hash(), "callDataSize", size, "blockCallDataSize", s.blockCallDataSize,
			"maxBlockCallDataSize", s.maxBlockCallDataSize)
		return Reject(ReasonBlockCallDataOverflow, Deferred)
	}
	return TxSelected
}

func (s *maxBlockCallDataSelector) EvaluatePostProcessing(*EvaluationContext, ProcessingResult) SelectionResult {
	return TxSelected
}

func (s *maxBlockCallDataSelector) OnTransactionSelected(evalCtx *EvaluationContext, _ ProcessingResult) {
	s.blockCallDataSize, _ = safeAdd(s.blockCallDataSize, uint64(len(evalCtx.Tx.Tx.Data())))
}
