package miner

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/flashbots/linea-sequencer/core/txpool"
)

// BundleSource finds the bundle a candidate transaction belongs to.
type BundleSource interface {
	FindBundleContaining(blockNumber uint64, tx *txpool.PendingTransaction) *txpool.TransactionBundle
}

// bundleSelector rejects the rest of a bundle once one of its transactions is
// rejected by any selector, for the rest of the attempt. Members selected
// before the failure stay selected and keep their gas accounted here; the
// block builder reverts them, using Failed to learn which bundles broke.
// It also enforces the validity window of the bundle and a cap on the gas all
// bundle transactions may use in a block.
type bundleSelector struct {
	bundles              BundleSource
	maxBundleGasPerBlock uint64

	bundleGasUsed uint64
	failed        map[common.Hash]struct{}
}

func newBundleSelector(bundles BundleSource, maxBundleGasPerBlock uint64) *bundleSelector {
	return &bundleSelector{
		bundles:              bundles,
		maxBundleGasPerBlock: maxBundleGasPerBlock,
		failed:               make(map[common.Hash]struct{}),
	}
}

func (s *bundleSelector) bundleOf(evalCtx *EvaluationContext) *txpool.TransactionBundle {
	return s.bundles.FindBundleContaining(evalCtx.BlockNumber, evalCtx.Tx)
}

func (s *bundleSelector) EvaluatePreProcessing(evalCtx *EvaluationContext) SelectionResult {
	bundle := s.bundleOf(evalCtx)
	if bundle == nil {
		return TxSelected
	}
	if _, failed := s.failed[bundle.Identifier]; failed {
		log.Trace("Not selecting bundle transaction, bundle already failed", "hash", evalCtx.Tx.Hash(), "bundle", bundle.Identifier)
		return Reject(ReasonBundleAlreadyFailed, Deferred)
	}
	if !bundle.InTimeWindow(evalCtx.Timestamp) {
		log.Trace("Not selecting bundle transaction, block timestamp outside bundle window",
			"hash", evalCtx.Tx.Hash(), "bundle", bundle.Identifier, "timestamp", evalCtx.Timestamp)
		return Reject(ReasonBundleOutsideTimeWindow, Deferred)
	}
	return TxSelected
}

func (s *bundleSelector) EvaluatePostProcessing(evalCtx *EvaluationContext, res ProcessingResult) SelectionResult {
	bundle := s.bundleOf(evalCtx)
	if bundle == nil {
		return TxSelected
	}
	hash := evalCtx.Tx.Hash()
	if res.Failed && !bundle.RevertingHash(hash) {
		log.Trace("Not selecting bundle transaction, reverted and not allowed to", "hash", hash, "bundle", bundle.Identifier)
		return Reject(ReasonBundleTxReverted, Deferred)
	}
	if cumulative, ok := safeAdd(s.bundleGasUsed, res.GasUsed); !ok || cumulative > s.maxBundleGasPerBlock {
		log.Trace("Not selecting bundle transaction, cumulative bundle gas greater than max bundle gas per block",
			"hash", hash, "bundle", bundle.Identifier, "bundleGasUsed", s.bundleGasUsed, "gasUsed", res.GasUsed,
			"maxBundleGasPerBlock", s.maxBundleGasPerBlock)
		return Reject(ReasonBundleGasExceeded, Deferred)
	}
	return TxSelected
}

func (s *bundleSelector) OnTransactionSelected(evalCtx *EvaluationContext, res ProcessingResult) {
	if s.bundleOf(evalCtx) == nil {
		return
	}
	s.bundleGasUsed, _ = safeAdd(s.bundleGasUsed, res.GasUsed)
}

func (s *bundleSelector) OnTransactionNotSelected(evalCtx *EvaluationContext, result SelectionResult) {
	bundle := s.bundleOf(evalCtx)
	if bundle == nil {
		return
	}
	if _, failed := s.failed[bundle.Identifier]; !failed {
		log.Debug("Bundle failed selection", "bundle", bundle.Identifier, "block", bundle.BlockNumber,
			"hash", evalCtx.Tx.Hash(), "reason", result)
		s.failed[bundle.Identifier] = struct{}{}
	}
}

// Failed reports whether a transaction of the bundle was rejected during this
// attempt.
func (s *bundleSelector) Failed(id common.Hash) bool {
	_, failed := s.failed[id]
	return failed
}
