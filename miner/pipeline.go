package miner

import (
	"errors"

	"github.com/ethereum/go-ethereum/log"
	"github.com/flashbots/linea-sequencer/core/txpool"
)

var errPipelineClosed = errors.New("transaction selector pipeline used after close")

// BundlePool is the part of the bundle pool the pipeline reads.
type BundlePool interface {
	BundleSource
	BundlesForBlock(blockNumber uint64) []*txpool.TransactionBundle
}

// Pipeline runs the configured selectors over the candidates of one block
// building attempt. It is driven by a single goroutine and holds the
// accounting state of that attempt only.
type Pipeline struct {
	selectors []TransactionSelector
	bundles   BundlePool

	blockNumber uint64
	timestamp   uint64

	selected int
	closed   bool
}

func newPipeline(selectors []TransactionSelector, bundles BundlePool, blockNumber, timestamp uint64) *Pipeline {
	return &Pipeline{
		selectors:   selectors,
		bundles:     bundles,
		blockNumber: blockNumber,
		timestamp:   timestamp,
	}
}

func (p *Pipeline) evaluationContext(tx *txpool.PendingTransaction) *EvaluationContext {
	if p.closed {
		panic(errPipelineClosed)
	}
	return &EvaluationContext{Tx: tx, BlockNumber: p.blockNumber, Timestamp: p.timestamp}
}

// EvaluatePreProcessing runs the pre-processing checks of every selector in
// order and returns the first rejection.
func (p *Pipeline) EvaluatePreProcessing(tx *txpool.PendingTransaction) SelectionResult {
	evalCtx := p.evaluationContext(tx)
	for _, selector := range p.selectors {
		if result := selector.EvaluatePreProcessing(evalCtx); !result.Selected() {
			p.notSelected(evalCtx, result)
			return result
		}
	}
	return TxSelected
}

// EvaluatePostProcessing runs the post-processing checks of every selector in
// order. If all of them select the transaction, every selector is notified in
// the same order. On the first rejection no selector state is updated.
func (p *Pipeline) EvaluatePostProcessing(tx *txpool.PendingTransaction, res ProcessingResult) SelectionResult {
	evalCtx := p.evaluationContext(tx)
	for _, selector := range p.selectors {
		if result := selector.EvaluatePostProcessing(evalCtx, res); !result.Selected() {
			p.notSelected(evalCtx, result)
			return result
		}
	}
	for _, selector := range p.selectors {
		selector.OnTransactionSelected(evalCtx, res)
	}
	p.selected++
	markResult(TxSelected)
	return TxSelected
}

func (p *Pipeline) notSelected(evalCtx *EvaluationContext, result SelectionResult) {
	markResult(result)
	log.Trace("Transaction not selected", "hash", evalCtx.Tx.Hash(), "block", p.blockNumber, "result", result)
	for _, selector := range p.selectors {
		if hook, ok := selector.(TransactionNotSelectedHook); ok {
			hook.OnTransactionNotSelected(evalCtx, result)
		}
	}
}

// Close ends the block building attempt. The pipeline must not be used
// afterwards.
func (p *Pipeline) Close() {
	if p.closed {
		return
	}
	p.closed = true
	pipelineSelectedGauge.Update(int64(p.selected))
	log.Debug("Transaction selection finished", "block", p.blockNumber, "selected", p.selected)
}

func (p *Pipeline) Closed() bool {
	return p.closed
}

// BlockNumber is the number of the block being built.
func (p *Pipeline) BlockNumber() uint64 {
	return p.blockNumber
}

func (p *Pipeline) Timestamp() uint64 {
	return p.timestamp
}

// Bundles returns the bundles currently targeting the block being built.
func (p *Pipeline) Bundles() []*txpool.TransactionBundle {
	return p.bundles.BundlesForBlock(p.blockNumber)
}

// SelectedCount is the number of transactions selected so far.
func (p *Pipeline) SelectedCount() int {
	return p.selected
}
