package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"collabstream/internal/infrastructure/scheduler"
	"collabstream/pkg/config"
	"collabstream/pkg/distributed"
)

func newSweepCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Refresh every active session once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			var lock scheduler.Locker
			if client := a.factory.RedisClient(); client != nil {
				lock = distributed.NewLock(client, sweepLockKey, cfg.Sweeper.LockTTL)
			}
			sweeper, err := scheduler.NewSweeper(a.aggregator, lock, scheduler.Config{
				Interval: cfg.Sweeper.Interval,
				Timeout:  cfg.Sweeper.LockTTL,
			}, a.log)
			if err != nil {
				return err
			}

			result, ran, err := sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if !ran {
				fmt.Fprintln(cmd.OutOrStdout(), "sweep skipped: another instance holds the lock")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d refreshed=%d skipped=%d failed=%d\n",
				result.Scanned, result.Refreshed, result.Skipped, result.Failed)
			return nil
		},
	}
}
