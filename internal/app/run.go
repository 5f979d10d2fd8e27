package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediaqa/config"
	"mediaqa/internal/logging"
	"mediaqa/internal/version"
)

// shutdownTimeout bounds graceful shutdown after a signal.
const shutdownTimeout = 30 * time.Second

// LoadConfig loads configuration and installs the configured logger.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Format, cfg.Logging.Level)
	return cfg, nil
}

// ServeVideo runs the summarizer server for target until SIGINT or SIGTERM.
func ServeVideo(configPath string, target config.Target) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting "+string(target),
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	application, err := New(context.Background(), Config{AppConfig: cfg, Target: target})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start(":" + cfg.Server.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var startErr error
	select {
	case startErr = <-errCh:
	case sig := <-quit:
		slog.Info("received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(startErr, application.Shutdown(ctx))
}
