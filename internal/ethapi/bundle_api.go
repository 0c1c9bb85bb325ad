package ethapi

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/flashbots/linea-sequencer/core/txpool"
	"github.com/flashbots/linea-sequencer/miner"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Namespace the bundle API is registered under.
const Namespace = "linea"

const maxBundleTxs = 100

var (
	ErrMalformedRequest = errors.New("malformed request")

	errTooManyTxs      = errors.New("too many transactions in bundle")
	errZeroBlockNumber = errors.New("bundle block number must be positive")
)

// MalformedRequestError is returned when the parameters of a request can not
// be parsed. It is reported to JSON-RPC clients as an invalid params error.
type MalformedRequestError struct {
	Method string
	Err    error
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed %s json param: %v", e.Method, e.Err)
}

func (e *MalformedRequestError) ErrorCode() int { return -32602 }

func (e *MalformedRequestError) Unwrap() error { return e.Err }

func (e *MalformedRequestError) Is(target error) bool {
	return target == ErrMalformedRequest
}

type rateLimitedError struct{}

func (rateLimitedError) Error() string  { return "bundle submission rate limit exceeded" }
func (rateLimitedError) ErrorCode() int { return -32005 }

var ErrRateLimited error = rateLimitedError{}

func malformed(method string, err error) error {
	return &MalformedRequestError{Method: method, Err: err}
}

// BundleSessions exposes the pipeline of the block currently being built.
type BundleSessions interface {
	Current() *miner.Pipeline
}

type BundleAPI struct {
	pool     *txpool.LimitedBundlePool
	sessions BundleSessions
	limiter  *rate.Limiter

	requestSeq atomic.Uint64
}

// NewBundleAPI creates the API. limiter bounds the rate of bundle
// submissions, nil means unlimited.
func NewBundleAPI(pool *txpool.LimitedBundlePool, sessions BundleSessions, limiter *rate.Limiter) *BundleAPI {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &BundleAPI{pool: pool, sessions: sessions, limiter: limiter}
}

type SendBundleArgs struct {
	Txs               []hexutil.Bytes `json:"txs"`
	BlockNumber       hexutil.Uint64  `json:"blockNumber"`
	MinTimestamp      *hexutil.Uint64 `json:"minTimestamp,omitempty"`
	MaxTimestamp      *hexutil.Uint64 `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash   `json:"revertingTxHashes,omitempty"`
	ReplacementUUID   *string         `json:"replacementUUID,omitempty"`
}

type SendBundleResponse struct {
	BundleHash common.Hash `json:"bundleHash"`
}

func parseReplacementUUID(s string) (uuid.UUID, error) {
	token, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid replacement uuid %q: %w", s, err)
	}
	return token, nil
}

func parseBundleArgs(args *SendBundleArgs) (*txpool.TransactionBundle, error) {
	if len(args.Txs) > maxBundleTxs {
		return nil, errTooManyTxs
	}
	if args.BlockNumber == 0 {
		return nil, errZeroBlockNumber
	}

	txs := make([]*txpool.PendingTransaction, len(args.Txs))
	for i, raw := range args.Txs {
		var tx types.Transaction
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("tx %d: %w", i, err)
		}
		txs[i] = txpool.NewPendingTransaction(&tx, false)
	}

	// NewTransactionBundle rejects empty bundles and inverted windows
	id := txpool.BundleHash(txs)
	if args.ReplacementUUID != nil {
		token, err := parseReplacementUUID(*args.ReplacementUUID)
		if err != nil {
			return nil, err
		}
		id = txpool.ReplacementHash(token)
	}
	return txpool.NewTransactionBundle(id, txs, uint64(args.BlockNumber),
		(*uint64)(args.MinTimestamp), (*uint64)(args.MaxTimestamp), args.RevertingTxHashes)
}

// SendBundle adds the bundle to the pool, replacing the one submitted earlier
// under the same replacement uuid.
func (api *BundleAPI) SendBundle(ctx context.Context, args SendBundleArgs) (*SendBundleResponse, error) {
	seq := api.requestSeq.Add(1)
	if !api.limiter.Allow() {
		log.Debug("Bundle submission rate limited", "seq", seq)
		return nil, ErrRateLimited
	}
	bundle, err := parseBundleArgs(&args)
	if err == nil && bundle.Weight() > api.pool.MaxWeight() {
		err = fmt.Errorf("%w: weight %d, capacity %d", txpool.ErrBundleTooHeavy, bundle.Weight(), api.pool.MaxWeight())
	}
	if err != nil {
		log.Debug("Rejected malformed bundle", "seq", seq, "err", err)
		return nil, malformed("linea_sendBundle", err)
	}
	api.pool.PutOrReplace(bundle.Identifier, bundle)
	log.Debug("Received bundle", "seq", seq, "bundle", bundle.Identifier, "block", bundle.BlockNumber,
		"txs", len(bundle.Txs), "replacement", args.ReplacementUUID != nil)
	return &SendBundleResponse{BundleHash: bundle.Identifier}, nil
}

// CancelBundle removes the bundle submitted with the given replacement uuid.
// It returns false if no such bundle is in the pool.
func (api *BundleAPI) CancelBundle(ctx context.Context, replacementUUID string) (bool, error) {
	seq := api.requestSeq.Add(1)
	token, err := parseReplacementUUID(replacementUUID)
	if err != nil {
		log.Debug("Rejected malformed bundle cancellation", "seq", seq, "err", err)
		return false, malformed("linea_cancelBundle", err)
	}
	removed := api.pool.RemoveByToken(token)
	log.Debug("Cancel bundle", "seq", seq, "uuid", token, "removed", removed)
	return removed, nil
}

// TrackedBundles returns the bundles the block currently being built can
// include, or an empty list if no block is being built.
func (api *BundleAPI) TrackedBundles(ctx context.Context) ([]common.Hash, error) {
	ids := []common.Hash{}
	pipeline := api.sessions.Current()
	if pipeline == nil {
		return ids, nil
	}
	for _, bundle := range pipeline.Bundles() {
		ids = append(ids, bundle.Identifier)
	}
	return ids, nil
}
