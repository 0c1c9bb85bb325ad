package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/ethereum/go-ethereum/log"
	"github.com/flashbots/linea-sequencer/builder"
	"github.com/flashbots/linea-sequencer/miner"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type sequencerConfig struct {
	Miner   miner.Config
	Builder builder.Config
}

func defaultConfig() sequencerConfig {
	cfg := sequencerConfig{
		Miner:   miner.DefaultConfig,
		Builder: builder.DefaultConfig,
	}
	cfg.Miner.Selectors = append([]string(nil), miner.DefaultConfig.Selectors...)
	return cfg
}

func loadConfig(file string, cfg *sequencerConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig loads the config file, if any, and applies the command line
// flags on top of it.
func makeConfig(ctx *cli.Context) (sequencerConfig, error) {
	cfg := defaultConfig()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
		log.Info("Loaded config file", "file", file)
	}

	if ctx.IsSet(httpAddrFlag.Name) {
		cfg.Builder.ListenAddr = ctx.String(httpAddrFlag.Name)
	}
	if ctx.IsSet(ethRPCFlag.Name) {
		cfg.Builder.EthRPCEndpoint = ctx.String(ethRPCFlag.Name)
	}
	if ctx.IsSet(headPollIntervalFlag.Name) {
		cfg.Builder.HeadPollInterval = ctx.Duration(headPollIntervalFlag.Name)
	}
	if ctx.IsSet(noPruneFlag.Name) {
		cfg.Builder.PruneFinalizedBundles = !ctx.Bool(noPruneFlag.Name)
	}
	if ctx.IsSet(maxGasPerBlockFlag.Name) {
		cfg.Miner.MaxGasPerBlock = ctx.Uint64(maxGasPerBlockFlag.Name)
	}
	if ctx.IsSet(maxBlockCallDataFlag.Name) {
		cfg.Miner.MaxBlockCallDataSize = ctx.Uint64(maxBlockCallDataFlag.Name)
	}
	if ctx.IsSet(maxBundleGasFlag.Name) {
		cfg.Miner.MaxBundleGasPerBlock = ctx.Uint64(maxBundleGasFlag.Name)
	}
	if ctx.IsSet(bundlePoolSizeFlag.Name) {
		cfg.Miner.MaxBundlePoolSizeBytes = ctx.Uint64(bundlePoolSizeFlag.Name)
	}
	if ctx.IsSet(selectorsFlag.Name) {
		cfg.Miner.Selectors = ctx.StringSlice(selectorsFlag.Name)
	}
	if err := cfg.Miner.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid miner config: %w", err)
	}
	return cfg, nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
