package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/raoulx24/snapkeeper/internal/app"
	"github.com/raoulx24/snapkeeper/internal/config"
	"github.com/raoulx24/snapkeeper/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "snapkeeper:", err)
		os.Exit(1)
	}
}

func run() error {
	path := config.Path()

	// Load config
	cfg, err := config.Load(path)
	if err != nil {
		var ce *config.ConfigError
		if errors.As(err, &ce) {
			return fmt.Errorf("invalid configuration %s: %w", path, err)
		}
		return err
	}

	logg := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	a, err := app.New(cfg, logg)
	if err != nil {
		logg.Error("startup failed", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logg.Info("shutting down", "signal", sig.String())
			a.Shutdown()
		case <-ctx.Done():
		}
	}()

	// Hot reload on SIGHUP
	if cfg.ConfigReload.Enabled {
		go func() {
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGHUP)
			defer signal.Stop(sigCh)

			for {
				select {
				case <-sigCh:
					newCfg, err := config.Load(path)
					if err != nil {
						logg.Error("config reload failed", "error", err)
						continue
					}
					a.Reload(newCfg)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	if err := a.Run(ctx); err != nil {
		logg.Error("exited with error", "error", err)
		return err
	}
	logg.Info("exit complete")
	return nil
}
