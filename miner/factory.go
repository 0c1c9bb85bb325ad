package miner

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// ChainReader gives access to the head the next block is built on.
type ChainReader interface {
	CurrentHeader() *types.Header
}

// SessionContext identifies a block building attempt.
type SessionContext struct {
	// Timestamp of the block being built.
	Timestamp uint64
}

// SelectorFactory creates a new Pipeline for every block building attempt.
// Pipelines share the configuration and the bundle pool but nothing else.
type SelectorFactory struct {
	config  Config
	chain   ChainReader
	bundles BundlePool

	current atomic.Pointer[Pipeline]
}

func NewSelectorFactory(config Config, chain ChainReader, bundles BundlePool) (*SelectorFactory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.Selectors = append([]string(nil), config.Selectors...)
	return &SelectorFactory{
		config:  config,
		chain:   chain,
		bundles: bundles,
	}, nil
}

// Create returns a fresh pipeline for the block on top of the current head.
func (f *SelectorFactory) Create(session SessionContext) *Pipeline {
	var blockNumber uint64
	if head := f.chain.CurrentHeader(); head != nil {
		blockNumber = head.Number.Uint64() + 1
	} else {
		log.Warn("No chain head available, building on genesis")
	}

	selectors := make([]TransactionSelector, 0, len(f.config.Selectors))
	for _, name := range f.config.Selectors {
		selectors = append(selectors, selectorBuilders[name](&f.config, f.bundles))
	}
	pipeline := newPipeline(selectors, f.bundles, blockNumber, session.Timestamp)
	f.current.Store(pipeline)

	pipelineCreatedMeter.Mark(1)
	log.Debug("Created transaction selector pipeline", "block", blockNumber, "timestamp", session.Timestamp,
		"selectors", f.config.Selectors, "bundles", len(pipeline.Bundles()))
	return pipeline
}

// Current returns the most recently created pipeline, or nil. It is meant
// for read-only introspection and must not be used to evaluate candidates.
func (f *SelectorFactory) Current() *Pipeline {
	return f.current.Load()
}

func (f *SelectorFactory) Config() Config {
	return f.config
}
