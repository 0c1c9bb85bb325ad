package builder

import (
	"context"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// BlockPruner drops the bundles of blocks that can no longer be built.
type BlockPruner interface {
	RemoveBlocksUpTo(blockNumber uint64) int
}

// BundlePruner removes the bundles targeting blocks at or below every new
// chain head.
type BundlePruner struct {
	pool  BlockPruner
	heads <-chan *types.Header
}

func NewBundlePruner(pool BlockPruner, heads <-chan *types.Header) *BundlePruner {
	return &BundlePruner{pool: pool, heads: heads}
}

func (p *BundlePruner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case head := <-p.heads:
			if removed := p.pool.RemoveBlocksUpTo(head.Number.Uint64()); removed > 0 {
				log.Info("Pruned bundles for included blocks", "head", head.Number, "removed", removed)
			}
		}
	}
}
