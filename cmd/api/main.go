package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/app"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/internal/api"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger()
	slog.SetDefault(log)

	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Migrator.Up(ctx); err != nil {
		return err
	}

	e := api.NewEcho(log)
	api.RegisterRoutes(e, api.NewUsersHandler(c.Users), api.NewJobsHandler(c.Queue))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting HTTP server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// The memory queue lives in this process, so its workers must too.
	if cfg.Queue.Driver == config.Memory {
		if err := c.Maintenance.Start(); err != nil {
			return err
		}
		for _, category := range c.Processors.Categories() {
			w, err := c.NewWorker(category, cfg.Worker.Concurrency)
			if err != nil {
				return err
			}
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		c.Maintenance.Stop(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
