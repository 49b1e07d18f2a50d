package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/commitmentparties/engine/internal/app"
	"github.com/commitmentparties/engine/internal/config"
	"github.com/commitmentparties/engine/internal/logger"
	"github.com/commitmentparties/engine/internal/routes"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN)

	app, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		panic(err)
	}
	defer func() {
		closeErr := app.Close()
		if closeErr != nil {
			slog.Error("failed to close app", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	for _, loop := range app.Loops {
		group.Go(func() error {
			return loop.Run(ctx)
		})
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: routes.SetupRoutes(app),
	}
	group.Go(func() error {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		err := server.ListenAndServe()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		slog.Error("agent stopped", "error", err)
		panic(err)
	}
	slog.Info("agent shut down cleanly")
}
