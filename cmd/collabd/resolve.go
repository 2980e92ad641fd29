package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"collabstream/pkg/config"
	"collabstream/pkg/videoref"
)

func newResolveCmd(load func() (*config.Config, error)) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "resolve <url-or-video-id>",
		Short: "Resolve the live status of a single stream",
		Args:  cobra.ExactArgs(1),
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

			videoID, ok := videoref.ExtractVideoID(args[0])
			if !ok {
				videoID = args[0]
			}

			status, err := a.resolver.Resolve(cmd.Context(), videoID, maxAge)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "accept a cached status this old (0 uses the configured default)")
	return cmd
}
