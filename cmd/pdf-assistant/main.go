// Package main runs the interactive PDF assistant in the terminal.
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

	"mediaqa/internal/app"
	"mediaqa/internal/assistant"
	"mediaqa/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (default: config/config.yaml or config.yaml when present)")
	fresh := flag.Bool("new", false, "Start a new run instead of continuing the latest one")
	user := flag.String("user", "", "User whose runs are continued (default: user)")
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if err := run(*configPath, *user, *fresh); err != nil {
		slog.Error("pdf-assistant failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, user string, fresh bool) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pdf, err := app.NewAssistant(ctx, cfg, app.AssistantOptions{User: user, Fresh: fresh})
	if err != nil {
		return err
	}
	defer func() {
		if err := pdf.Close(); err != nil {
			slog.Error("failed to close assistant", "error", err)
		}
	}()

	assistant.Announce(os.Stdout, pdf.Run, pdf.Resumed)

	// Reading stdin cannot be interrupted, so a signal ends the session here
	// while the loop goroutine is left blocked until the process exits.
	done := make(chan error, 1)
	go func() {
		done <- assistant.NewCLI(pdf.Assistant, os.Stdout).Loop(ctx, os.Stdin, os.Stdout)
	}()
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		fmt.Println()
		return nil
	}
}
