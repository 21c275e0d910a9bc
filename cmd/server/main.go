// Package main - Entry point for the partquote HTTP server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"partquote/api"
	"partquote/internal/app"
	"partquote/internal/config"
	"partquote/internal/logging"
)

const version = "0.1.0"

func main() {
	cfgFile := flag.String("config", "", "config file (JSON)")
	addr := flag.String("addr", "", "server address (overrides config)")
	catalogPath := flag.String("catalog", "", "catalog directory or .hcl file (overrides config)")
	flag.Parse()

	if err := run(*cfgFile, *addr, *catalogPath); err != nil {
		fmt.Fprintf(os.Stderr, "partquote-server: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgFile, addr, catalogPath string) error {
	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if catalogPath != "" {
		cfg.Catalog.Path = catalogPath
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Sync()
	logger := logging.Named("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logging.Logger)
	if err != nil {
		return err
	}
	logger.Info("engine ready",
		zap.Strings("cost_models", a.Engine.CostModels()),
		zap.Int("finish_operations", a.Catalog.Operations.Len()),
		zap.String("prerequisite_policy", cfg.Pricing.PrerequisitePolicy))

	srv := api.NewServer(a.Engine, version, api.WithLogger(logger))
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
