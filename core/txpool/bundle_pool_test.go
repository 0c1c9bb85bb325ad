package txpool

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func pendingTx(nonce uint64, dataSize int) *PendingTransaction {
	tx := types.NewTx(&types.LegacyTx{
		Nonce: nonce,
		Gas:   21000,
		To:    &common.Address{0x01},
		Data:  make([]byte, dataSize),
	})
	return NewPendingTransaction(tx, false)
}

func testBundle(t *testing.T, blockNumber uint64, txs ...*PendingTransaction) *TransactionBundle {
	t.Helper()
	bundle, err := NewTransactionBundle(BundleHash(txs), txs, blockNumber, nil, nil, nil)
	require.NoError(t, err)
	return bundle
}

// requireConsistent checks that the block index and the LRU reference the
// same identifiers and that the weight matches the stored bundles.
func requireConsistent(t *testing.T, p *LimitedBundlePool) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()

	indexed := 0
	for blockNumber, entries := range p.blockIndex {
		require.NotEmpty(t, entries, "empty index entry for block %d", blockNumber)
		for _, entry := range entries {
			bundle, ok := p.bundles.Peek(entry.id)
			require.True(t, ok, "indexed bundle %s missing from store", entry.id)
			require.Equal(t, blockNumber, bundle.BlockNumber)
			require.Same(t, bundle, entry.bundle)
			indexed++
		}
	}
	require.Equal(t, p.bundles.Len(), indexed)

	var weight uint64
	for _, id := range p.bundles.Keys() {
		bundle, _ := p.bundles.Peek(id)
		weight += bundle.Weight()
	}
	require.Equal(t, weight, p.weight)
	require.LessOrEqual(t, p.weight, p.maxWeight)
}

func TestBundlePoolPutGetRemove(t *testing.T) {
	pool := NewLimitedBundlePool(1 << 20)
	bundle := testBundle(t, 10, pendingTx(0, 10), pendingTx(1, 10))

	pool.PutOrReplace(bundle.Identifier, bundle)
	require.Same(t, bundle, pool.Get(bundle.Identifier))
	require.Equal(t, []*TransactionBundle{bundle}, pool.BundlesForBlock(10))
	require.Equal(t, bundle.Weight(), pool.Weight())
	requireConsistent(t, pool)

	// same arguments twice is a no-op
	pool.PutOrReplace(bundle.Identifier, bundle)
	require.Equal(t, 1, pool.Len())
	require.Len(t, pool.BundlesForBlock(10), 1)
	requireConsistent(t, pool)

	require.True(t, pool.Remove(bundle.Identifier))
	require.Nil(t, pool.Get(bundle.Identifier))
	require.Empty(t, pool.BundlesForBlock(10))
	require.Zero(t, pool.Weight())
	requireConsistent(t, pool)

	require.False(t, pool.Remove(bundle.Identifier))
	require.Nil(t, pool.Get(common.HexToHash("0x1234")))
	require.NotNil(t, pool.BundlesForBlock(99))
}

func TestBundlePoolReplaceMovesBlock(t *testing.T) {
	pool := NewLimitedBundlePool(1 << 20)
	token := uuid.MustParse("2fa47a9c-1eb2-4189-b1b0-d79bf2d0fc83")
	id := ReplacementHash(token)

	old, err := NewTransactionBundle(id, []*PendingTransaction{pendingTx(0, 10)}, 5, nil, nil, nil)
	require.NoError(t, err)
	replacement, err := NewTransactionBundle(id, []*PendingTransaction{pendingTx(1, 20)}, 6, nil, nil, nil)
	require.NoError(t, err)

	pool.PutOrReplaceByToken(token, old)
	pool.PutOrReplaceByToken(token, replacement)

	require.Empty(t, pool.BundlesForBlock(5))
	require.Equal(t, []*TransactionBundle{replacement}, pool.BundlesForBlock(6))
	require.Same(t, replacement, pool.GetByToken(token))
	require.Equal(t, replacement.Weight(), pool.Weight())
	requireConsistent(t, pool)

	require.True(t, pool.RemoveByToken(token))
	require.False(t, pool.RemoveByToken(token))
	require.Empty(t, pool.BundlesForBlock(6))
	requireConsistent(t, pool)
}

func TestBundlePoolEviction(t *testing.T) {
	a := testBundle(t, 10, pendingTx(0, 500))
	b := testBundle(t, 10, pendingTx(1, 600))
	require.Greater(t, b.Weight(), a.Weight())

	// room for either bundle but not both
	pool := NewLimitedBundlePool(a.Weight() + b.Weight() - 1)
	pool.PutOrReplace(a.Identifier, a)
	pool.PutOrReplace(b.Identifier, b)

	require.Nil(t, pool.Get(a.Identifier))
	require.Same(t, b, pool.Get(b.Identifier))
	require.Equal(t, []*TransactionBundle{b}, pool.BundlesForBlock(10))
	requireConsistent(t, pool)
}

func TestBundlePoolEvictionPrefersLeastRecentlyUsed(t *testing.T) {
	a := testBundle(t, 1, pendingTx(0, 100))
	b := testBundle(t, 2, pendingTx(1, 100))
	c := testBundle(t, 3, pendingTx(2, 100))

	pool := NewLimitedBundlePool(a.Weight() + b.Weight() + c.Weight() - 1)
	pool.PutOrReplace(a.Identifier, a)
	pool.PutOrReplace(b.Identifier, b)

	// touching a leaves b as the oldest entry
	require.NotNil(t, pool.Get(a.Identifier))
	pool.PutOrReplace(c.Identifier, c)

	require.NotNil(t, pool.Get(a.Identifier))
	require.Nil(t, pool.Get(b.Identifier))
	require.NotNil(t, pool.Get(c.Identifier))
	require.Empty(t, pool.BundlesForBlock(2))
	requireConsistent(t, pool)
}

func TestBundlePoolOversizedBundle(t *testing.T) {
	small := testBundle(t, 1, pendingTx(0, 10))
	small2 := testBundle(t, 2, pendingTx(1, 10))
	pool := NewLimitedBundlePool(small.Weight() * 4)
	pool.PutOrReplace(small.Identifier, small)
	pool.PutOrReplace(small2.Identifier, small2)

	big := testBundle(t, 1, pendingTx(2, 1000))
	require.Greater(t, big.Weight(), pool.MaxWeight())
	pool.PutOrReplace(big.Identifier, big)

	require.Nil(t, pool.Get(big.Identifier))
	require.Same(t, small, pool.Get(small.Identifier))
	require.Same(t, small2, pool.Get(small2.Identifier))
	require.Equal(t, []*TransactionBundle{small}, pool.BundlesForBlock(1))
	require.Equal(t, 2, pool.Len())
	requireConsistent(t, pool)

	// an oversized replacement still removes the bundle it replaces
	pool.PutOrReplace(small2.Identifier, big)
	require.Nil(t, pool.Get(small2.Identifier))
	require.Empty(t, pool.BundlesForBlock(2))
	require.Equal(t, 1, pool.Len())
	requireConsistent(t, pool)
}

func TestBundlePoolFindBundleContaining(t *testing.T) {
	pool := NewLimitedBundlePool(1 << 20)
	tx1, tx2, tx3 := pendingTx(0, 0), pendingTx(1, 0), pendingTx(2, 0)
	bundle := testBundle(t, 7, tx1, tx2)
	pool.PutOrReplace(bundle.Identifier, bundle)

	require.Same(t, bundle, pool.FindBundleContaining(7, tx2))
	require.Nil(t, pool.FindBundleContaining(7, tx3))
	require.Nil(t, pool.FindBundleContaining(8, tx1))
}

func TestBundlePoolRemoveByBlockNumber(t *testing.T) {
	pool := NewLimitedBundlePool(1 << 20)
	var block5 []*TransactionBundle
	for i := uint64(0); i < 3; i++ {
		bundle := testBundle(t, 5, pendingTx(i, 10))
		pool.PutOrReplace(bundle.Identifier, bundle)
		block5 = append(block5, bundle)
	}
	other := testBundle(t, 6, pendingTx(10, 10))
	pool.PutOrReplace(other.Identifier, other)

	pool.RemoveByBlockNumber(5)
	for _, bundle := range block5 {
		require.Nil(t, pool.Get(bundle.Identifier))
	}
	require.Empty(t, pool.BundlesForBlock(5))
	require.Equal(t, []*TransactionBundle{other}, pool.BundlesForBlock(6))
	require.Equal(t, other.Weight(), pool.Weight())
	requireConsistent(t, pool)

	// unknown block is a no-op
	pool.RemoveByBlockNumber(42)
	require.Equal(t, 1, pool.Len())
}

func TestBundlePoolRemoveBlocksUpTo(t *testing.T) {
	pool := NewLimitedBundlePool(1 << 20)
	for block := uint64(1); block <= 5; block++ {
		bundle := testBundle(t, block, pendingTx(block, 10))
		pool.PutOrReplace(bundle.Identifier, bundle)
	}

	require.Equal(t, 3, pool.RemoveBlocksUpTo(3))
	for block := uint64(1); block <= 3; block++ {
		require.Empty(t, pool.BundlesForBlock(block))
	}
	require.Len(t, pool.BundlesForBlock(4), 1)
	require.Len(t, pool.BundlesForBlock(5), 1)
	requireConsistent(t, pool)
}

func TestBundlePoolConcurrentInsertSameBlock(t *testing.T) {
	pool := NewLimitedBundlePool(1 << 30)
	const writers = 16
	const perWriter = 50

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				txs := []*PendingTransaction{pendingTx(uint64(w*perWriter+i), 1)}
				bundle, err := NewTransactionBundle(BundleHash(txs), txs, 100, nil, nil, nil)
				if err != nil {
					return err
				}
				pool.PutOrReplace(bundle.Identifier, bundle)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	bundles := pool.BundlesForBlock(100)
	require.Len(t, bundles, writers*perWriter)
	seen := make(map[common.Hash]struct{}, len(bundles))
	for _, bundle := range bundles {
		_, dup := seen[bundle.Identifier]
		require.False(t, dup, "bundle %s indexed twice", bundle.Identifier)
		seen[bundle.Identifier] = struct{}{}
	}
	requireConsistent(t, pool)
}

func TestBundlePoolConcurrentChurn(t *testing.T) {
	bundles := make([]*TransactionBundle, 64)
	for i := range bundles {
		bundles[i] = testBundle(t, uint64(i%4), pendingTx(uint64(i), 50))
	}
	// small enough that inserts keep evicting
	pool := NewLimitedBundlePool(bundles[0].Weight() * 4)

	tokens := make([]uuid.UUID, 8)
	for i := range tokens {
		tokens[i] = uuid.New()
	}

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 500; i++ {
				token := tokens[(w+i)%len(tokens)]
				bundle := bundles[(w*7+i)%len(bundles)]
				replacement, err := NewTransactionBundle(ReplacementHash(token), bundle.Txs, bundle.BlockNumber, nil, nil, nil)
				if err != nil {
					return err
				}
				switch i % 5 {
				case 0:
					pool.RemoveByToken(token)
				case 1:
					pool.RemoveByBlockNumber(bundle.BlockNumber)
				case 2:
					pool.GetByToken(token)
				default:
					pool.PutOrReplaceByToken(token, replacement)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	requireConsistent(t, pool)
}

func TestReplacementHashDeterministic(t *testing.T) {
	token := uuid.MustParse("e2b1132f-7948-4227-aac4-041e9192110a")
	require.Equal(t, ReplacementHash(token), ReplacementHash(token))
	require.NotEqual(t, ReplacementHash(token), ReplacementHash(uuid.MustParse("2fa47a9c-1eb2-4189-b1b0-d79bf2d0fc83")))

	// keccak256 of the most and least significant halves, big-endian
	msb, lsb := uint64(0xe2b1132f79484227), uint64(0xaac4041e9192110a)
	expected := crypto.Keccak256Hash(binary.BigEndian.AppendUint64(binary.BigEndian.AppendUint64(nil, msb), lsb))
	require.Equal(t, expected, ReplacementHash(token))
}

func TestNewTransactionBundle(t *testing.T) {
	lo, hi := uint64(5), uint64(10)
	_, err := NewTransactionBundle(common.Hash{}, nil, 1, nil, nil, nil)
	require.ErrorIs(t, err, ErrEmptyBundle)

	_, err = NewTransactionBundle(common.Hash{}, []*PendingTransaction{pendingTx(0, 0)}, 1, &hi, &lo, nil)
	require.ErrorIs(t, err, ErrInvalidBundleWindow)

	tx := pendingTx(0, 0)
	bundle, err := NewTransactionBundle(common.Hash{0x1}, []*PendingTransaction{tx}, 1, &lo, &hi, []common.Hash{tx.Hash()})
	require.NoError(t, err)
	require.True(t, bundle.RevertingHash(tx.Hash()))
	require.False(t, bundle.InTimeWindow(4))
	require.True(t, bundle.InTimeWindow(7))
	require.False(t, bundle.InTimeWindow(11))
	require.Equal(t, tx.Size(), bundle.Weight())

	hi = 100
	require.Equal(t, uint64(10), *bundle.MaxTimestamp, "bundle must not alias caller values")
}
