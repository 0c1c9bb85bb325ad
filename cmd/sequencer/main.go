package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/flashbots/go-utils/jsonrpc"
	"github.com/flashbots/linea-sequencer/builder"
	"github.com/flashbots/linea-sequencer/core/txpool"
	"github.com/flashbots/linea-sequencer/miner"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:   "sequencer",
		Usage:  "transaction selection and bundle pool service",
		Flags:  serviceFlags,
		Before: setupLogging,
		Action: runSequencer,
		Commands: []*cli.Command{
			{
				Name:   "dumpconfig",
				Usage:  "Show configuration values",
				Flags:  serviceFlags,
				Action: dumpConfig,
			},
			{
				Name:      "cancel-bundle",
				Usage:     "Cancel a bundle by its replacement uuid",
				ArgsUsage: "<uuid>",
				Flags:     []cli.Flag{rpcURLFlag},
				Action:    cancelBundle,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(ctx *cli.Context) error {
	lvl := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
	return nil
}

func runSequencer(cliCtx *cli.Context) error {
	cfg, err := makeConfig(cliCtx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := ethclient.DialContext(ctx, cfg.Builder.EthRPCEndpoint)
	if err != nil {
		return fmt.Errorf("could not connect to execution client: %w", err)
	}
	defer client.Close()

	pool := txpool.NewLimitedBundlePool(cfg.Miner.MaxBundlePoolSizeBytes)
	chain := builder.NewRemoteChain(client, cfg.Builder.HeadPollInterval)
	// Pipelines are created by the block builder embedding the factory; this
	// process only serves the pool, so trackedBundles stays empty here.
	factory, err := miner.NewSelectorFactory(cfg.Miner, chain, pool)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return chain.Run(ctx) })
	if cfg.Builder.PruneFinalizedBundles {
		pruner := builder.NewBundlePruner(pool, chain.NewHeads())
		g.Go(func() error { return pruner.Run(ctx) })
	}
	if cfg.Builder.Enabled {
		service, err := builder.NewService(&cfg.Builder, pool, factory)
		if err != nil {
			return err
		}
		g.Go(service.Start)
		g.Go(func() error {
			<-ctx.Done()
			return service.Stop()
		})
	} else {
		log.Warn("Bundle service disabled")
	}

	log.Info("Sequencer started", "selectors", cfg.Miner.Selectors, "maxGasPerBlock", cfg.Miner.MaxGasPerBlock,
		"bundlePoolSize", cfg.Miner.MaxBundlePoolSizeBytes)
	err = g.Wait()
	log.Info("Sequencer stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func cancelBundle(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("expected the replacement uuid of the bundle")
	}
	resp, err := jsonrpc.SendJSONRPCRequest(jsonrpc.JSONRPCRequest{
		ID:      1,
		Method:  "linea_cancelBundle",
		Version: "2.0",
		Params:  []interface{}{ctx.Args().First()},
	}, ctx.String(rpcURLFlag.Name))
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	fmt.Println(string(resp.Result))
	return nil
}
