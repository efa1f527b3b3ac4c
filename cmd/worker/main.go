package main

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/userfire/app"
	"github.com/RezaEskandarii/userfire/config"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/RezaEskandarii/userfire/types"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Background job workers for the users service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	rootCmd.AddCommand(runCmd, deadLettersCmd, statsCmd, migrateCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withContainer builds the dependency container for one command invocation
// and cancels ctx on SIGINT or SIGTERM.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewLogger()

	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("close container", logger.Error(err))
		}
	}()
	return fn(ctx, c)
}

// parseCategories accepts a comma separated list or "all".
func parseCategories(s string) ([]types.Category, error) {
	if s == "" || s == "all" {
		return types.AllCategories, nil
	}
	var out []types.Category
	for _, part := range strings.Split(s, ",") {
		c, err := types.ParseCategory(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func categoryAttr(c types.Category) slog.Attr {
	return slog.String("category", c.String())
}
