package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"launchpad/config"
	"launchpad/core"
	"launchpad/core/genesis"
	"launchpad/observability/logging"
	telemetry "launchpad/observability/otel"
	"launchpad/rpc"
	"launchpad/storage"
	"launchpad/storage/journal"
)

const (
	serviceName     = "launchpadd"
	genesisPathEnv  = "LAUNCHPAD_GENESIS"
	shutdownTimeout = 10 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to the genesis JSON file (overrides LAUNCHPAD_GENESIS and config GenesisFile)")
	exportPath := flag.String("export-events", "", "Write journaled events to this Parquet file and exit")
	exportType := flag.String("export-type", "", "Only export events of this type")
	exportFrom := flag.Uint64("export-from-height", 0, "Only export events at or above this height")
	flag.Parse()

	var err error
	if *exportPath != "" {
		err = exportEvents(*configFile, *exportPath, journal.EventFilter{Type: *exportType, FromHeight: *exportFrom})
	} else {
		err = run(*configFile, *genesisFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile, genesisFlag string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	dsn, err := cfg.JournalSource()
	if err != nil {
		return err
	}
	receipts, err := journal.Open(dsn)
	if err != nil {
		return fmt.Errorf("open receipt journal: %w", err)
	}
	defer receipts.Close()

	genesisPath := resolveGenesisPath(genesisFlag, cfg.GenesisFile, os.LookupEnv)
	spec, err := genesis.LoadGenesisSpec(genesisPath)
	if err != nil {
		return fmt.Errorf("load genesis %s: %w", genesisPath, err)
	}

	node, err := core.NewNode(db, spec, core.NodeOptions{Journal: receipts, Logger: logger})
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	logger.Info("node ready",
		slog.Uint64("chain_id", node.ChainID()),
		slog.Uint64("height", node.Height()),
		slog.String("state_root", node.StateRoot().Hex()))

	jwtCfg := rpc.JWTConfig{
		Enable:   cfg.RPC.JWT.Enable,
		Issuer:   cfg.RPC.JWT.Issuer,
		Audience: cfg.RPC.JWT.Audience,
		MaxSkew:  time.Duration(cfg.RPC.JWT.MaxSkewSeconds) * time.Second,
	}
	if jwtCfg.Enable {
		secret, ok := os.LookupEnv(cfg.RPC.JWT.SecretEnv)
		if !ok || strings.TrimSpace(secret) == "" {
			return fmt.Errorf("rpc JWT enabled but %s is not set", cfg.RPC.JWT.SecretEnv)
		}
		jwtCfg.Secret = secret
	}
	server, err := rpc.NewServer(node, receipts, rpc.ServerConfig{
		ReadHeaderTimeout: cfg.RPC.ReadHeaderTimeoutDuration(),
		ReadTimeout:       cfg.RPC.ReadTimeoutDuration(),
		WriteTimeout:      cfg.RPC.WriteTimeoutDuration(),
		IdleTimeout:       cfg.RPC.IdleTimeoutDuration(),
		MaxBodyBytes:      cfg.RPC.MaxBodyBytes,
		RateLimitPerSec:   cfg.RPC.RateLimitPerSec,
		RateLimitBurst:    cfg.RPC.RateLimitBurst,
		AllowedOrigins:    cfg.RPC.AllowedOrigins,
		JWT:               jwtCfg,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCAddress, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("rpc shutdown", slog.Any("error", err))
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("rpc server", slog.Any("error", err))
	}
	return nil
}

// resolveGenesisPath prefers the command-line flag, then the environment, then
// the config file.
func resolveGenesisPath(flagValue, configValue string, lookup func(string) (string, bool)) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if lookup != nil {
		if value, ok := lookup(genesisPathEnv); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(configValue)
}
