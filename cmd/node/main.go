package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/keato/btcnode/internal/blockstore"
	"github.com/keato/btcnode/internal/log"
	"github.com/keato/btcnode/internal/metrics"
	"github.com/keato/btcnode/internal/session"
	"github.com/keato/btcnode/internal/transport"
	"github.com/keato/btcnode/internal/wire"
)

type options struct {
	Network     string   `long:"network" choice:"main" choice:"testnet" choice:"testnet3" choice:"namecoin" default:"testnet3" description:"which network magic to speak"`
	Listen      string   `long:"listen" description:"address to accept inbound peer connections on, e.g. :8333"`
	Connect     []string `long:"connect" description:"address of a peer to dial on startup; may be given multiple times"`
	BlockStore  string   `long:"block-store" choice:"memory" choice:"postgres" default:"memory" description:"which block store backend to use"`
	DBConfig    string   `long:"db-config" default:"config.json" description:"path to the Postgres config file, used when --block-store=postgres"`
	MetricsAddr string   `long:"metrics-addr" default:":9090" description:"address for the Prometheus metrics server"`
	UserAgent   string   `long:"user-agent" default:"/btcnode:0.1/" description:"user agent string announced in our version message"`
	Debug       bool     `long:"debug" description:"enable debug-level logging"`
}

const protocolVersion int32 = 70002

func networkFromFlag(name string) wire.NetworkType {
	switch name {
	case "main":
		return wire.Main
	case "testnet":
		return wire.TestNet
	case "namecoin":
		return wire.NameCoin
	default:
		return wire.TestNet3
	}
}

func newBlockStore(opts *options) (blockstore.Store, func() error, error) {
	if opts.BlockStore != "postgres" {
		return blockstore.NewMemory(), func() error { return nil }, nil
	}

	cfg, err := blockstore.LoadConfig(opts.DBConfig)
	if err != nil {
		return nil, nil, err
	}
	pg, err := blockstore.NewPostgres(cfg)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Debug {
		log.SetDebugLevel()
	}

	log.Log.Info().Str("network", opts.Network).Msg("=== btcnode ===")

	store, closeStore, err := newBlockStore(&opts)
	if err != nil {
		log.Log.Fatal().Err(err).Msg("failed to initialize block store")
	}
	defer closeStore()

	metrics.StartMetricsServer(opts.MetricsAddr)
	log.Log.Info().Str("addr", opts.MetricsAddr).Msg("metrics server started")

	network := networkFromFlag(opts.Network)
	state := session.NewState(store)

	dispatcher := session.NewDispatcher(network, nil, state, int32(store.Height()), opts.UserAgent, protocolVersion)
	t := transport.NewTCP(dispatcher)
	dispatcher.SetSender(t)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if opts.Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := t.Listen(ctx, opts.Listen); err != nil {
				log.Log.Error().Err(err).Msg("listener stopped")
			}
		}()
	}

	for _, addr := range opts.Connect {
		if err := t.Connect(addr); err != nil {
			log.Log.Warn().Err(err).Str("addr", addr).Msg("initial connect failed")
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Log.Info().Str("signal", sig.String()).Msg("received signal, shutting down")

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Log.Info().Msg("shutdown complete")
	case <-time.After(10 * time.Second):
		log.Log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
