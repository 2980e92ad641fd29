package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"collabstream/internal/core/domain"
	"collabstream/internal/infrastructure/distributed"
	"collabstream/pkg/config"
)

func newWatchCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session events published by every instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			client := a.factory.RedisClient()
			if client == nil {
				return fmt.Errorf("watch requires redis storage")
			}

			bus := distributed.NewEventBus(client, a.instanceID, cfg.Events.Channel, a.log)
			enc := json.NewEncoder(cmd.OutOrStdout())
			err = bus.Subscribe(ctx, true, func(e *domain.SessionEvent) error {
				return enc.Encode(e)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
