// Command fae-host is the headless host bridge: it reads command envelopes
// as newline-delimited JSON from stdin, dispatches them through the host
// command channel, and writes response and event envelopes to stdout.
//
// All diagnostic output goes to stderr so that stdout remains a clean JSON
// protocol channel.
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
	"time"

	"github.com/saorsa-labs/fae/internal/app"
	"github.com/saorsa-labs/fae/internal/config"
	"github.com/saorsa-labs/fae/internal/host/stdio"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	flag.StringVar(configPath, "c", "", "shorthand for -config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fae-host: %v\n", err)
		return 1
	}

	// Logs strictly to stderr; stdout carries the protocol.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	slog.Info("fae-host starting")

	application, err := app.New(cfg, *configPath)
	if err != nil {
		slog.Error("fae-host failed to initialise", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridge := stdio.NewBridge(application.Channel(), os.Stdin, os.Stdout)
	err = bridge.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("shutdown error", "err", shutdownErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fae-host exited with error", "err", err)
		return 1
	}
	slog.Info("fae-host shut down cleanly")
	return 0
}
