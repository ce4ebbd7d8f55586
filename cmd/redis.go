package cmd

import (
	"context"
	"fmt"
	"time"

	"geojournal/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis timeline cache",
	Long:  `Connect to Redis, round-trip a short-lived key and report the state of the timeline cache.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()
		fmt.Fprintln(out, "Connected.")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		if err := cache.CheckRedis(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Read/write check passed.")

		tc := cache.NewTimelineCache(cache.RedisClient, cfg.TimelineCacheSize, cfg.TimelineCacheTTL)
		entries, warm, err := tc.Recent(ctx, tc.Size())
		if err != nil {
			return err
		}
		if !warm {
			fmt.Fprintln(out, "Timeline cache is cold; it fills on the next listing.")
			return nil
		}
		fmt.Fprintf(out, "Timeline cache is warm with %d of at most %d entries.\n", len(entries), tc.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
