package main

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/userfire/app"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		down, _ := cmd.Flags().GetBool("down")
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			if down {
				if err := c.Migrator.Down(ctx); err != nil {
					return err
				}
			} else if err := c.Migrator.Up(ctx); err != nil {
				return err
			}
			version, err := c.Migrator.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("schema version %d\n", version)
			return nil
		})
	},
}

func init() {
	migrateCmd.Flags().Bool("down", false, "roll back the most recent migration")
}
