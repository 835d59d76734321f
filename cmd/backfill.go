package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/backfill"
	"github.com/sells-group/lead-intake/pkg/groupme"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Replay recent GroupMe history through the lead pipeline",
	Long:  "Fetches the group's messages from the last --hours (at most --max messages), skips bot, system and short messages, and processes the rest as if they had arrived by webhook. Messages matching an existing lead are counted as duplicates and leave it untouched, so repeated runs are safe.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "backfill")
		if err != nil {
			return err
		}
		defer env.Close()

		hours, _ := cmd.Flags().GetInt("hours")
		maxMessages, _ := cmd.Flags().GetInt("max")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		client := groupme.NewClient(cfg.GroupMe.AccessToken,
			groupme.WithBaseURL(cfg.GroupMe.BaseURL),
			groupme.WithRateLimit(cfg.GroupMe.RateLimit),
		)

		groupID := cfg.GroupMe.GroupID
		if groupID == "" {
			bot, err := groupme.FindBotGroup(ctx, client, cfg.Ingest.WebhookPath)
			if err != nil {
				return eris.Wrap(err, "resolve group from webhook bot")
			}
			groupID = bot.GroupID
			zap.L().Info("using group of webhook bot",
				zap.String("bot", bot.Name),
				zap.String("group_id", groupID),
			)
		}

		start := time.Now()
		b := backfill.New(client, env.Pipeline, env.Filter)
		sum, err := b.Run(ctx, backfill.Options{
			GroupID:     groupID,
			Hours:       hours,
			MaxMessages: maxMessages,
			Concurrency: concurrency,
		})
		if err != nil {
			return err
		}

		zap.L().Info("backfill finished", zap.Duration("elapsed", time.Since(start)))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

func init() {
	backfillCmd.Flags().Int("hours", backfill.DefaultHours, "how far back to look")
	backfillCmd.Flags().Int("max", backfill.DefaultMaxMessages, "maximum messages to fetch")
	backfillCmd.Flags().Int("concurrency", backfill.DefaultConcurrency, "messages processed in parallel")
	rootCmd.AddCommand(backfillCmd)
}
