package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/RezaEskandarii/userfire/app"
	"github.com/RezaEskandarii/userfire/internal/message_broaker"
	"github.com/RezaEskandarii/userfire/pkg/logger"
	"github.com/spf13/cobra"
	"os"
	"text/tabwriter"
	"time"
)

var deadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List envelopes that exhausted their retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryFlag, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		categories, err := parseCategories(categoryFlag)
		if err != nil {
			return err
		}

		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tID\tNAME\tATTEMPTS\tFAILED AT\tLAST ERROR")
			for _, category := range categories {
				items, total, err := c.Queue.DeadLetters(ctx, category, limit, offset)
				if err != nil {
					return err
				}
				for _, d := range items {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
						d.Category, d.ID, d.Name, d.Attempts, d.FailedAt.Format(time.RFC3339), d.LastError)
				}
				fmt.Fprintf(tw, "%s\t(%d of %d)\t\t\t\t\n", category, len(items), total)
			}
			return tw.Flush()
		})
	},
}

var deadLettersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream dead-letter events published by running workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			if c.MessageBroker == nil {
				return errors.New("RABBITMQ_URL is not set")
			}
			messages, err := c.MessageBroker.Consume(ctx, "")
			if err != nil {
				return err
			}
			fmt.Printf("watching %s on %s\n", c.Config.RabbitMQ.RoutingKey, c.Config.RabbitMQ.Exchange)
			for {
				select {
				case <-ctx.Done():
					return nil
				case body, ok := <-messages:
					if !ok {
						return nil
					}
					ev, err := message_broaker.DecodeOutcomeEvent(body)
					if err != nil {
						c.Log.Warn("skipping malformed event", logger.Error(err))
						continue
					}
					fmt.Printf("%s  %-7s %-16s %s attempt=%d error=%q\n",
						ev.FinishedAt.Format(time.RFC3339), ev.Category, ev.Name, ev.EnvelopeID, ev.Attempt, ev.Error)
				}
			}
		})
	},
}

func init() {
	deadLettersCmd.PersistentFlags().String("category", "all", "category to inspect")
	deadLettersCmd.Flags().Int("limit", 20, "maximum records per category")
	deadLettersCmd.Flags().Int("offset", 0, "records to skip")
	deadLettersCmd.AddCommand(deadLettersWatchCmd)
}
