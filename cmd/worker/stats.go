package main

import (
	"context"
	"fmt"
	"github.com/RezaEskandarii/userfire/app"
	"github.com/spf13/cobra"
	"os"
	"text/tabwriter"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show envelope counts per state",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryFlag, _ := cmd.Flags().GetString("category")
		categories, err := parseCategories(categoryFlag)
		if err != nil {
			return err
		}

		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tPENDING\tIN-FLIGHT\tRETRYING\tCOMPLETED\tDEAD")
			for _, category := range categories {
				s, err := c.Queue.Stats(ctx, category)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Category, s.Pending, s.InFlight, s.Retrying, s.Completed, s.Dead)
			}
			return tw.Flush()
		})
	},
}

func init() {
	statsCmd.Flags().String("category", "all", "category to inspect")
}
