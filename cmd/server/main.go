package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nfrund/parley/internal/app"
	"github.com/nfrund/parley/internal/config"
	"github.com/nfrund/parley/internal/logging"
	"github.com/nfrund/parley/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		// slog may not be configured yet when config loading fails.
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	logging.New(cfg.LogFormat, cfg.LogLevel)

	deps, err := app.Resolve(app.NewContainer(cfg))
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := server.New(deps)
	s.RegisterRoutes()
	if err := s.StartServices(ctx); err != nil {
		return errors.Join(err, deps.Close(context.Background()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Start(cfg.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(s.Shutdown(shutdownCtx), deps.Close(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped cleanly")
	return nil
}
