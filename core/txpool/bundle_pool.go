package txpool

import (
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

var (
	bundlePoolWeightGauge  = metrics.NewRegisteredGauge("bundlepool/weight", nil)
	bundlePoolCountGauge   = metrics.NewRegisteredGauge("bundlepool/count", nil)
	bundlePoolEvictedMeter = metrics.NewRegisteredMeter("bundlepool/evicted", nil)
)

type indexEntry struct {
	id     common.Hash
	bundle *TransactionBundle
}

// LimitedBundlePool stores bundles keyed by identifier with a bound on the
// total weight of the stored bundles, and indexes them by target block number.
//
// The LRU and the block index are guarded by the same lock and every removal
// from the LRU, whether explicit, by replacement or by eviction, goes through
// onRemoved. An identifier is therefore present in the block index if and only
// if it is present in the LRU once a method has returned.
type LimitedBundlePool struct {
	mu sync.Mutex

	bundles    *simplelru.LRU[common.Hash, *TransactionBundle]
	blockIndex map[uint64][]indexEntry

	weight    uint64
	maxWeight uint64
}

// NewLimitedBundlePool creates a pool holding at most maxWeight bytes of
// bundle transactions.
func NewLimitedBundlePool(maxWeight uint64) *LimitedBundlePool {
	p := &LimitedBundlePool{
		blockIndex: make(map[uint64][]indexEntry),
		maxWeight:  maxWeight,
	}
	// the size bound is never reached, capacity is enforced by weight
	bundles, err := simplelru.NewLRU[common.Hash, *TransactionBundle](math.MaxInt, p.onRemoved)
	if err != nil {
		panic(err)
	}
	p.bundles = bundles
	return p
}

// onRemoved is called by the LRU with p.mu held.
func (p *LimitedBundlePool) onRemoved(id common.Hash, bundle *TransactionBundle) {
	p.weight -= bundle.Weight()
	p.removeFromBlockIndex(id, bundle.BlockNumber)
}

// Get returns the bundle stored under id or nil. A hit marks the bundle as
// recently used.
func (p *LimitedBundlePool) Get(id common.Hash) *TransactionBundle {
	p.mu.Lock()
	defer p.mu.Unlock()

	bundle, _ := p.bundles.Get(id)
	return bundle
}

func (p *LimitedBundlePool) GetByToken(token uuid.UUID) *TransactionBundle {
	return p.Get(ReplacementHash(token))
}

// PutOrReplace stores the bundle under id. A bundle previously stored under id
// is dropped from the block index before the new one is added, so it is never
// left behind under its old block number. A bundle heavier than the pool
// capacity replaces the old entry but is not stored.
func (p *LimitedBundlePool) PutOrReplace(id common.Hash, bundle *TransactionBundle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.bundles.Peek(id); ok {
		p.bundles.Remove(id)
	}
	// a bundle heavier than the pool is dropped on its own, residents stay
	if weight := bundle.Weight(); weight > p.maxWeight {
		bundlePoolEvictedMeter.Mark(1)
		log.Info("Dropping transaction bundle due to size", "block", bundle.BlockNumber, "id", id,
			"weight", weight, "maxWeight", p.maxWeight)
		p.updateMetrics()
		return
	}
	p.bundles.Add(id, bundle)
	p.weight += bundle.Weight()
	p.addToBlockIndex(id, bundle)

	p.evict()
	p.updateMetrics()
}

func (p *LimitedBundlePool) PutOrReplaceByToken(token uuid.UUID, bundle *TransactionBundle) {
	p.PutOrReplace(ReplacementHash(token), bundle)
}

// evict drops least recently used bundles until the pool is within its
// weight limit.
func (p *LimitedBundlePool) evict() {
	for p.weight > p.maxWeight {
		id, bundle, ok := p.bundles.RemoveOldest()
		if !ok {
			// nothing left to drop, the accounting is off
			log.Error("Bundle pool weight without bundles", "weight", p.weight)
			p.weight = 0
			return
		}
		bundlePoolEvictedMeter.Mark(1)
		log.Info("Dropping transaction bundle due to size", "block", bundle.BlockNumber, "id", id, "weight", bundle.Weight())
	}
}

// Remove drops the bundle stored under id and reports whether there was one.
func (p *LimitedBundlePool) Remove(id common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := p.bundles.Remove(id)
	p.updateMetrics()
	return removed
}

func (p *LimitedBundlePool) RemoveByToken(token uuid.UUID) bool {
	return p.Remove(ReplacementHash(token))
}

// BundlesForBlock returns the bundles targeting the block, in insertion order.
func (p *LimitedBundlePool) BundlesForBlock(blockNumber uint64) []*TransactionBundle {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.blockIndex[blockNumber]
	res := make([]*TransactionBundle, 0, len(entries))
	for _, entry := range entries {
		res = append(res, entry.bundle)
	}
	return res
}

// FindBundleContaining returns a bundle targeting the block that contains tx,
// or nil if the transaction is not part of any of them.
func (p *LimitedBundlePool) FindBundleContaining(blockNumber uint64, tx *PendingTransaction) *TransactionBundle {
	hash := tx.Hash()
	for _, bundle := range p.BundlesForBlock(blockNumber) {
		if bundle.ContainsTx(hash) {
			return bundle
		}
	}
	return nil
}

// RemoveByBlockNumber drops every bundle targeting the block. The index entry
// is detached first, then the bundles it referenced are removed.
func (p *LimitedBundlePool) RemoveByBlockNumber(blockNumber uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.removeByBlockNumber(blockNumber)
	p.updateMetrics()
}

// RemoveBlocksUpTo drops the bundles of every block up to and including
// blockNumber and returns how many bundles were removed.
func (p *LimitedBundlePool) RemoveBlocksUpTo(blockNumber uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for b := range p.blockIndex {
		if b <= blockNumber {
			removed += p.removeByBlockNumber(b)
		}
	}
	p.updateMetrics()
	return removed
}

func (p *LimitedBundlePool) removeByBlockNumber(blockNumber uint64) int {
	entries, ok := p.blockIndex[blockNumber]
	if !ok {
		return 0
	}
	delete(p.blockIndex, blockNumber)

	removed := 0
	for _, entry := range entries {
		if p.bundles.Remove(entry.id) {
			removed++
		}
	}
	return removed
}

func (p *LimitedBundlePool) addToBlockIndex(id common.Hash, bundle *TransactionBundle) {
	p.blockIndex[bundle.BlockNumber] = append(p.blockIndex[bundle.BlockNumber], indexEntry{id: id, bundle: bundle})
}

func (p *LimitedBundlePool) removeFromBlockIndex(id common.Hash, blockNumber uint64) {
	entries, ok := p.blockIndex[blockNumber]
	if !ok {
		return
	}
	for i, entry := range entries {
		if entry.id == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(p.blockIndex, blockNumber)
	} else {
		p.blockIndex[blockNumber] = entries
	}
}

func (p *LimitedBundlePool) updateMetrics() {
	bundlePoolWeightGauge.Update(int64(p.weight))
	bundlePoolCountGauge.Update(int64(p.bundles.Len()))
}

// Len returns the number of bundles in the pool.
func (p *LimitedBundlePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.bundles.Len()
}

// Weight returns the total weight of the bundles in the pool.
func (p *LimitedBundlePool) Weight() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.weight
}

func (p *LimitedBundlePool) MaxWeight() uint64 {
	return p.maxWeight
}
