package main

import (
	"github.com/flashbots/linea-sequencer/builder"
	"github.com/flashbots/linea-sequencer/miner"
	"github.com/urfave/cli/v2"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	httpAddrFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "Listening address of the bundle JSON-RPC server",
		Value: builder.DefaultConfig.ListenAddr,
	}
	ethRPCFlag = &cli.StringFlag{
		Name:  "eth.rpc",
		Usage: "Execution client JSON-RPC endpoint used to follow the chain head",
		Value: builder.DefaultConfig.EthRPCEndpoint,
	}
	headPollIntervalFlag = &cli.DurationFlag{
		Name:  "eth.pollinterval",
		Usage: "Interval between chain head polls",
		Value: builder.DefaultConfig.HeadPollInterval,
	}
	noPruneFlag = &cli.BoolFlag{
		Name:  "bundles.noprune",
		Usage: "Keep bundles of blocks that are already part of the chain",
	}
	maxGasPerBlockFlag = &cli.Uint64Flag{
		Name:  "miner.maxgas",
		Usage: "Maximum gas user transactions may use in a block",
		Value: miner.DefaultConfig.MaxGasPerBlock,
	}
	maxBlockCallDataFlag = &cli.Uint64Flag{
		Name:  "miner.maxcalldata",
		Usage: "Maximum total calldata size of a block in bytes",
		Value: miner.DefaultConfig.MaxBlockCallDataSize,
	}
	maxBundleGasFlag = &cli.Uint64Flag{
		Name:  "miner.maxbundlegas",
		Usage: "Maximum gas bundle transactions may use in a block",
		Value: miner.DefaultConfig.MaxBundleGasPerBlock,
	}
	bundlePoolSizeFlag = &cli.Uint64Flag{
		Name:  "bundles.poolsize",
		Usage: "Maximum total size of the pooled bundles in bytes",
		Value: miner.DefaultConfig.MaxBundlePoolSizeBytes,
	}
	selectorsFlag = &cli.StringSliceFlag{
		Name:  "miner.selectors",
		Usage: "Transaction selectors in evaluation order",
		Value: cli.NewStringSlice(miner.DefaultConfig.Selectors...),
	}
	rpcURLFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "Bundle JSON-RPC endpoint",
		Value: "http://127.0.0.1" + builder.DefaultConfig.ListenAddr,
	}
)

var serviceFlags = []cli.Flag{
	configFileFlag,
	verbosityFlag,
	httpAddrFlag,
	ethRPCFlag,
	headPollIntervalFlag,
	noPruneFlag,
	maxGasPerBlockFlag,
	maxBlockCallDataFlag,
	maxBundleGasFlag,
	bundlePoolSizeFlag,
	selectorsFlag,
}
