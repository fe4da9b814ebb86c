package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"promptforge/internal/catalog"
	"promptforge/internal/config"
	"promptforge/internal/ledger"
	"promptforge/internal/pipeline"
	providerfactory "promptforge/internal/provider/factory"
	"promptforge/internal/server"
)

const serveUsage = `Usage:
  promptforge serve --config <path> [--port <port>]

Flags:
  --config string   Path to YAML configuration file (required)
  --port   int      Override server port from configuration
  --env    string   Path to a .env file with provider API keys (optional)`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var envPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&envPath, "env", "", "path to .env file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	if cfgPath == "" {
		return errors.New("serve command requires --config <path>")
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load env file %q: %w", envPath, err)
		}
	} else {
		// Best effort: a .env next to the working directory is convenient in
		// development and absent in production.
		_ = godotenv.Load()
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	adapters, err := providerfactory.BuildAdapters(cfg)
	if err != nil {
		return err
	}

	store := catalog.NewCachedStore(catalog.NewRegistry(cfg), cfg.Catalog.EffectiveCacheTTL())
	resolver := catalog.NewResolver(store)
	creditLedger := ledger.NewMemoryFromConfig(cfg)
	p := pipeline.New(resolver, creditLedger, adapters, slog.Default())

	srv, err := server.New(cfg, p, creditLedger)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
