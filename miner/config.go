package miner

import (
	"errors"
	"fmt"
)

// Selector names usable in Config.Selectors.
const (
	SelectorMaxBlockCallData = "calldata"
	SelectorBundle           = "bundle"
	SelectorMaxBlockGas      = "maxgas"
)

type selectorBuilder func(cfg *Config, bundles BundleSource) TransactionSelector

var selectorBuilders = map[string]selectorBuilder{
	SelectorMaxBlockCallData: func(cfg *Config, _ BundleSource) TransactionSelector {
		return newMaxBlockCallDataSelector(cfg.MaxBlockCallDataSize)
	},
	SelectorBundle: func(cfg *Config, bundles BundleSource) TransactionSelector {
		return newBundleSelector(bundles, cfg.MaxBundleGasPerBlock)
	},
	SelectorMaxBlockGas: func(cfg *Config, _ BundleSource) TransactionSelector {
		return newMaxBlockGasSelector(cfg.MaxGasPerBlock)
	},
}

type Config struct {
	MaxBlockCallDataSize   uint64 `toml:",omitempty"`
	MaxGasPerBlock         uint64 `toml:",omitempty"`
	MaxBundleGasPerBlock   uint64 `toml:",omitempty"`
	MaxBundlePoolSizeBytes uint64 `toml:",omitempty"`
	// Selectors lists the enabled selectors in evaluation order, cheap
	// checks should come first.
	Selectors []string `toml:",omitempty"`
}

// DefaultConfig is the default selection config.
var DefaultConfig = Config{
	MaxBlockCallDataSize:   70_000,
	MaxGasPerBlock:         30_000_000,
	MaxBundleGasPerBlock:   15_000_000,
	MaxBundlePoolSizeBytes: 16 * 1024 * 1024,
	Selectors:              []string{SelectorMaxBlockCallData, SelectorBundle, SelectorMaxBlockGas},
}

var (
	ErrNoSelectors     = errors.New("no transaction selectors configured")
	ErrUnknownSelector = errors.New("unknown transaction selector")
)

func (c *Config) Validate() error {
	if len(c.Selectors) == 0 {
		return ErrNoSelectors
	}
	seen := make(map[string]struct{}, len(c.Selectors))
	for _, name := range c.Selectors {
		if _, ok := selectorBuilders[name]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSelector, name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate transaction selector %q", name)
		}
		seen[name] = struct{}{}
	}
	if c.MaxBundlePoolSizeBytes == 0 {
		return errors.New("bundle pool size must be positive")
	}
	return nil
}
