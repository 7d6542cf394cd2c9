package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"marketchain/config"
	"marketchain/core"
	"marketchain/core/events"
	"marketchain/core/genesis"
	"marketchain/observability/logging"
	telemetry "marketchain/observability/otel"
	"marketchain/rpc"
	"marketchain/services/indexer"
	"marketchain/storage"
)

const serviceName = "marketd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides config GenesisFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if path := strings.TrimSpace(*genesisFlag); path != "" {
		cfg.GenesisFile = path
	}

	logger, logCloser := logging.SetupWithFile(serviceName, cfg.Environment, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Telemetry.Traces || cfg.Telemetry.Metrics {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: serviceName,
			Environment: cfg.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
		})
		if err != nil {
			return fmt.Errorf("initialise telemetry: %w", err)
		}
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	db, err := storage.NewLevelDB(cfg.StatePath())
	if err != nil {
		return err
	}
	defer db.Close()

	tr, err := openState(db)
	if err != nil {
		return err
	}
	sp := core.NewStateProcessor(tr, cfg.ChainID)
	sp.SetLogger(logger)
	if err := sp.SetParams(cfg.MarketplaceParams()); err != nil {
		return fmt.Errorf("marketplace params: %w", err)
	}

	if cfg.GenesisFile != "" {
		spec, err := genesis.LoadGenesisSpec(cfg.GenesisFile)
		if err != nil {
			return err
		}
		applied, err := sp.ApplyGenesis(spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if applied {
			root, err := commitHead(db, sp, 0)
			if err != nil {
				return fmt.Errorf("commit genesis: %w", err)
			}
			logger.Info("genesis applied", "root", root.Hex(), "allocations", len(spec.Alloc))
		}
	}

	var index *indexer.Indexer
	if cfg.IndexerDSN != "" {
		index, err = indexer.Open(cfg.IndexerDSN)
		if err != nil {
			return err
		}
		defer index.Close()
		index.SetLogger(logger.With("component", "indexer"))
		sp.SetEmitter(events.Multi{index})
		logger.Info("event index enabled", "dsn", cfg.IndexerDSN)
	}

	var sales rpc.SalesIndex
	if index != nil {
		sales = index
	}
	server, err := rpc.NewServer(sp, sales, rpc.ServerConfig{
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		RateLimitBurst:     cfg.RPC.RateLimitBurst,
		MaxBodyBytes:       cfg.RPC.MaxBodyBytes,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeoutSeconds) * time.Second,
		TrustedProxies:     cfg.RPC.TrustedProxies,
		MaxConnections:     cfg.RPC.MaxConnections,
	})
	if err != nil {
		return err
	}
	server.SetLogger(logger.With("component", "rpc"))

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start(cfg.RPCAddress) }()

	ticker := time.NewTicker(cfg.CommitInterval())
	defer ticker.Stop()
	height := uint64(1)
	lastRoot := sp.CurrentRoot()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("rpc shutdown", "error", err)
			}
			if _, err := commitHead(db, sp, height); err != nil {
				return fmt.Errorf("final commit: %w", err)
			}
			return nil
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("rpc: %w", err)
			}
			return errors.New("rpc server stopped unexpectedly")
		case <-ticker.C:
			if sp.PendingRoot() == lastRoot {
				continue
			}
			root, err := commitHead(db, sp, height)
			if err != nil {
				logger.Error("commit failed", "height", height, "error", err)
				continue
			}
			logger.Debug("state committed", "height", height, "root", root.Hex())
			lastRoot = root
			height++
		}
	}
}
