// Command fae is the Fae speech assistant CLI.
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
	"github.com/saorsa-labs/fae/internal/observe"
	"github.com/saorsa-labs/fae/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", defaultConfigPath(), "path to the TOML configuration file")
	flag.StringVar(configPath, "c", *configPath, "shorthand for -config")
	flag.Usage = usage
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "chat"
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fae: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.LogLevel))

	switch command {
	case "chat":
		return runPipelineCommand(cfg, *configPath, pipeline.ModeConversation)
	case "transcribe":
		return runPipelineCommand(cfg, *configPath, pipeline.ModeTranscribeOnly)
	case "devices":
		return listDevices(cfg, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "fae: unknown command %q\n\n", command)
		usage()
		return 1
	}
}

func runPipelineCommand(cfg *config.Config, configPath string, mode pipeline.Mode) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "fae"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	application, err := app.New(cfg, configPath)
	if err != nil {
		slog.Error("failed to initialise core", "err", err)
		return 1
	}

	switch mode {
	case pipeline.ModeConversation:
		if cfg.Conversation.GateEnabled {
			fmt.Printf("\nListening for %q... Say %q to stop. Press Ctrl+C to quit.\n\n",
				cfg.Conversation.WakePhrase, cfg.Conversation.StopPhrase)
		} else {
			fmt.Println("\nReady! Speak into your microphone. Press Ctrl+C to stop.")
		}
	case pipeline.ModeTranscribeOnly:
		fmt.Println("\nTranscription mode. Press Ctrl+C to stop.")
	}

	err = application.RunPipeline(ctx, mode)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := application.Shutdown(shutdownCtx); shutdownErr != nil {
		slog.Warn("shutdown error", "err", shutdownErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("pipeline error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func listDevices(cfg *config.Config, configPath string) int {
	application, err := app.New(cfg, configPath)
	if err != nil {
		slog.Error("failed to initialise core", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	}()

	inputs, err := application.Platform().ListInputDevices()
	if err != nil {
		slog.Error("list input devices", "err", err)
		return 1
	}
	outputs, err := application.Platform().ListOutputDevices()
	if err != nil {
		slog.Error("list output devices", "err", err)
		return 1
	}

	fmt.Println("Input devices:")
	for _, name := range inputs {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("\nOutput devices:")
	for _, name := range outputs {
		fmt.Printf("  - %s\n", name)
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `Fae: real-time speech-to-speech assistant.

Usage:
  fae [-c config.toml] <command>

Commands:
  chat        Start a voice conversation (default).
  transcribe  Run in transcription-only mode (no LLM/TTS).
  devices     List available audio devices.
`)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fae.toml"
	}
	return home + "/.fae/config/fae.toml"
}

// newLogger builds the default text logger on stderr. The FAE_LOG
// environment variable (applied during config load) wins over the file
// value; the default filter keeps noisy dependency logs at warn.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
