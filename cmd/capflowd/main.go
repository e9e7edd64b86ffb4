// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command capflowd hosts capture sessions for remote camera clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ManuGH/capflow/internal/config"
	"github.com/ManuGH/capflow/internal/daemon"
	xglog "github.com/ManuGH/capflow/internal/log"
	"github.com/ManuGH/capflow/internal/telemetry"
	"github.com/ManuGH/capflow/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the environment is read")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if err := run(*configPath, *envFile); err != nil {
		logger := xglog.WithComponent("daemon")
		logger.Error().Err(err).Msg("capflowd exited with error")
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{Level: "info", Service: "capflow", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	// Variables already in the environment win over the dotenv file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(strings.TrimSpace(configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  logOutput(cfg.LogFormat),
		Service: cfg.Telemetry.ServiceName,
		Version: version.Version,
	})
	logger = xglog.WithComponent("daemon")
	if unknown := loader.UnknownEnvKeys(os.Environ()); len(unknown) > 0 {
		logger.Warn().Strs("keys", unknown).Str("event", "config.unknown_env").Msg("ignoring unknown environment variables")
	}
	if cfg.API.APIToken == "" && !cfg.API.AuthAnonymous {
		logger.Warn().Str("event", "auth.no_token").Msg("no API token configured; session routes will refuse every request")
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	holder := config.NewConfigHolder(cfg, loader)
	svc, err := daemon.BuildServices(ctx, holder, version.Version)
	if err != nil {
		return err
	}

	mgr, err := daemon.NewManager(daemon.ServerConfigFrom(cfg), daemon.Deps{
		Logger:     logger,
		APIHandler: svc.Server.Handler(),
	})
	if err != nil {
		return err
	}
	svc.Register(mgr)

	logger.Info().
		Str("event", "daemon.start").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Bool("evaluation", svc.Evaluator != nil).
		Msg("starting capflowd")

	return daemon.NewApp(logger, mgr, holder).Run(ctx)
}

func logOutput(format string) io.Writer {
	if strings.EqualFold(format, "console") {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}
