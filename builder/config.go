package builder

import "time"

type Config struct {
	Enabled          bool          `toml:",omitempty"`
	ListenAddr       string        `toml:",omitempty"`
	EthRPCEndpoint   string        `toml:",omitempty"`
	HeadPollInterval time.Duration `toml:",omitempty"`
	// PruneFinalizedBundles drops bundles targeting blocks at or below the
	// chain head.
	PruneFinalizedBundles bool `toml:",omitempty"`
	// BundleRateLimit is the number of bundle submissions accepted per
	// second, zero disables the limit.
	BundleRateLimit uint64 `toml:",omitempty"`
	BundleRateBurst int    `toml:",omitempty"`
}

// DefaultConfig is the default config for the bundle service.
var DefaultConfig = Config{
	Enabled:               true,
	ListenAddr:            ":28545",
	EthRPCEndpoint:        "http://127.0.0.1:8545",
	HeadPollInterval:      2 * time.Second,
	PruneFinalizedBundles: true,
	BundleRateLimit:       100,
	BundleRateBurst:       200,
}
