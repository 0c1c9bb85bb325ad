package builder

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// HeaderReader is the part of ethclient.Client used to follow the chain.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RemoteChain follows the head of an execution client over JSON-RPC and
// serves it to the selector factory.
type RemoteChain struct {
	client   HeaderReader
	interval time.Duration

	head  atomic.Pointer[types.Header]
	heads chan *types.Header
}

func NewRemoteChain(client HeaderReader, interval time.Duration) *RemoteChain {
	return &RemoteChain{
		client:   client,
		interval: interval,
		heads:    make(chan *types.Header, 1),
	}
}

// CurrentHeader returns the latest polled head, or nil before the first
// successful poll.
func (c *RemoteChain) CurrentHeader() *types.Header {
	return c.head.Load()
}

// NewHeads delivers every head that advanced the chain. A slow reader only
// sees the most recent one.
func (c *RemoteChain) NewHeads() <-chan *types.Header {
	return c.heads
}

func (c *RemoteChain) poll(ctx context.Context) error {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return err
	}
	if current := c.head.Load(); current != nil && header.Number.Cmp(current.Number) <= 0 {
		return nil
	}
	c.head.Store(header)
	log.Debug("New chain head", "number", header.Number, "hash", header.Hash())

	select {
	case <-c.heads:
	default:
	}
	c.heads <- header
	return nil
}

// Run polls the head until ctx is cancelled.
func (c *RemoteChain) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		if err := c.poll(ctx); err != nil && ctx.Err() == nil {
			log.Warn("Could not fetch chain head", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
