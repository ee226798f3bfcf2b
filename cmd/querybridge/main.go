package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomyedwab/querybridge/bridge"
	"github.com/tomyedwab/querybridge/config"
	"github.com/tomyedwab/querybridge/httpapi"
	"github.com/tomyedwab/querybridge/providers"
	"github.com/tomyedwab/querybridge/wasihost"
)

func main() {
	configPath := flag.String("config", "querybridge.yaml", "Path to the YAML config file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	wasmFile := flag.String("wasm", "", "Path to a WASM guest module to run (overrides wasm.module)")
	addr := flag.String("addr", "", "Listen address (overrides server.host and server.port)")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if *wasmFile != "" {
		cfg.Wasm.Module = *wasmFile
	}
	listenAddr := cfg.Server.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	if err := run(cfg, listenAddr, logger); err != nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, listenAddr string, logger *slog.Logger) error {
	var wasmBytes []byte
	if cfg.Wasm.Module != "" {
		var err error
		wasmBytes, err = os.ReadFile(cfg.Wasm.Module)
		if err != nil {
			return fmt.Errorf("failed to read WASM file %s: %w", cfg.Wasm.Module, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := providers.NewRegistry(logger)
	if cfg.AutoRegister {
		n := providers.RegisterDefaults(registry)
		logger.Info("Registered default providers", "count", n)
	}
	cfg.RegisterProviders(registry)
	logger.Info("Providers available", "names", registry.Names())

	b := bridge.New(bridge.Config{Providers: registry, Logger: logger})
	defer b.Close()

	server := httpapi.NewServer(b, httpapi.Config{
		Addr:         listenAddr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JWTSecret:    []byte(cfg.Auth.JWTSecret),
	}, logger)

	errs := make(chan error, 2)
	go func() {
		errs <- server.Run()
	}()

	if wasmBytes != nil {
		host := wasihost.New(b, logger)
		go func() {
			errs <- host.Run(ctx, wasmBytes)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errs:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
