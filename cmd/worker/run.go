package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/app"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"net/http"
	"time"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process envelopes of one or more categories until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryFlag, _ := cmd.Flags().GetString("category")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		maintain, _ := cmd.Flags().GetBool("maintenance")

		categories, err := parseCategories(categoryFlag)
		if err != nil {
			return err
		}

		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			if concurrency < 1 {
				concurrency = c.Config.Worker.Concurrency
			}
			log := c.Log.With(slog.String("instance", c.Config.Worker.Instance))

			if maintain {
				if err := c.Maintenance.Start(); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), c.Config.ShutdownTimeout)
					defer cancel()
					c.Maintenance.Stop(stopCtx)
				}()
			}

			g, gctx := errgroup.WithContext(ctx)
			for _, category := range categories {
				w, err := c.NewWorker(category, concurrency)
				if err != nil {
					return err
				}
				log.Info("starting worker", categoryAttr(category), slog.Int("concurrency", concurrency))
				g.Go(func() error {
					return w.Run(gctx)
				})
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", c.Config.Worker.MetricsPort),
				Handler:           promhttp.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			g.Go(func() error {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("metrics server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Config.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err := g.Wait()
			if err != nil {
				log.Error("worker stopped with error", logger.Error(err))
			}
			return err
		})
	},
}

func init() {
	runCmd.Flags().String("category", "all", "categories to process: email, audit, report, a comma separated list, or all")
	runCmd.Flags().Int("concurrency", 0, "envelopes processed in parallel per category (default WORKER_CONCURRENCY)")
	runCmd.Flags().Bool("maintenance", true, "also run lease recovery and retention sweeps")
}
