package txpool

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

var (
	ErrEmptyBundle         = errors.New("bundle has no transactions")
	ErrInvalidBundleWindow = errors.New("bundle min timestamp is after max timestamp")
	ErrBundleTooHeavy      = errors.New("bundle weight exceeds bundle pool capacity")
)

// PendingTransaction is a transaction waiting for inclusion together with the
// metadata the pool tracked for it.
type PendingTransaction struct {
	Tx      *types.Transaction
	Local   bool
	AddedAt time.Time
}

func NewPendingTransaction(tx *types.Transaction, local bool) *PendingTransaction {
	return &PendingTransaction{Tx: tx, Local: local, AddedAt: time.Now()}
}

func (p *PendingTransaction) Hash() common.Hash {
	return p.Tx.Hash()
}

// Size returns the encoded size of the transaction in bytes.
func (p *PendingTransaction) Size() uint64 {
	return p.Tx.Size()
}

// TransactionBundle is a group of transactions that must be included together
// in the block with number BlockNumber. Bundles are never mutated after they
// are built, a replacement is a new bundle stored under the same identifier.
type TransactionBundle struct {
	Identifier        common.Hash
	Txs               []*PendingTransaction
	BlockNumber       uint64
	MinTimestamp      *uint64
	MaxTimestamp      *uint64
	RevertingTxHashes []common.Hash
}

// NewTransactionBundle validates the bundle parameters and returns a bundle
// holding its own copies of the given slices.
func NewTransactionBundle(
	identifier common.Hash, txs []*PendingTransaction, blockNumber uint64,
	minTimestamp, maxTimestamp *uint64, revertingTxHashes []common.Hash,
) (*TransactionBundle, error) {
	if len(txs) == 0 {
		return nil, ErrEmptyBundle
	}
	if minTimestamp != nil && maxTimestamp != nil && *minTimestamp > *maxTimestamp {
		return nil, ErrInvalidBundleWindow
	}
	bundle := &TransactionBundle{
		Identifier:   identifier,
		Txs:          append([]*PendingTransaction(nil), txs...),
		BlockNumber:  blockNumber,
		MinTimestamp: copyUint64(minTimestamp),
		MaxTimestamp: copyUint64(maxTimestamp),
	}
	if len(revertingTxHashes) > 0 {
		bundle.RevertingTxHashes = append([]common.Hash(nil), revertingTxHashes...)
	}
	return bundle, nil
}

func copyUint64(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Weight is the number of bytes the bundle accounts for in the pool.
func (b *TransactionBundle) Weight() uint64 {
	var weight uint64
	for _, tx := range b.Txs {
		weight += tx.Size()
	}
	return weight
}

func (b *TransactionBundle) ContainsTx(hash common.Hash) bool {
	for _, tx := range b.Txs {
		if tx.Hash() == hash {
			return true
		}
	}
	return false
}

// RevertingHash reports whether the transaction is allowed to revert without
// invalidating the bundle.
func (b *TransactionBundle) RevertingHash(hash common.Hash) bool {
	for _, revHash := range b.RevertingTxHashes {
		if revHash == hash {
			return true
		}
	}
	return false
}

// InTimeWindow reports whether a block with the given timestamp satisfies the
// optional validity window of the bundle.
func (b *TransactionBundle) InTimeWindow(timestamp uint64) bool {
	if b.MinTimestamp != nil && timestamp < *b.MinTimestamp {
		return false
	}
	if b.MaxTimestamp != nil && timestamp > *b.MaxTimestamp {
		return false
	}
	return true
}

// BundleHash is the content address of a list of transactions: the keccak256
// of their concatenated hashes.
func BundleHash(txs []*PendingTransaction) common.Hash {
	bundleHasher := sha3.NewLegacyKeccak256()
	for _, tx := range txs {
		bundleHasher.Write(tx.Hash().Bytes())
	}
	return common.BytesToHash(bundleHasher.Sum(nil))
}

// ReplacementHash maps a replacement token to the identifier of the bundle it
// stands for. The token bytes are the most and least significant 64-bit halves
// in big-endian order, so this is keccak256(msb || lsb).
func ReplacementHash(token uuid.UUID) common.Hash {
	return crypto.Keccak256Hash(token[:])
}
