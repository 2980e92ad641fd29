package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"collabstream/pkg/config"
)

func newBackupCmd(load func() (*config.Config, error)) *cobra.Command {
	var list bool
	var keep int

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot every stored session into the backup directory",
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

			snapshotter, service, err := a.backups()
			if err != nil {
				return err
			}

			if list {
				names, err := service.ListBackups(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			name, count, err := snapshotter.Snapshot(cmd.Context(), "manual")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s sessions=%d\n", name, count)

			if keep > 0 {
				removed, err := service.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				if removed > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "pruned=%d\n", removed)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list existing backups instead of creating one")
	cmd.Flags().IntVar(&keep, "keep", 0, "prune to the newest N backups after creating one (0 keeps all)")
	return cmd
}

func newRestoreCmd(load func() (*config.Config, error)) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "restore <backup-name|latest>",
		Short: "Load sessions from a backup into storage",
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

			snapshotter, service, err := a.backups()
			if err != nil {
				return err
			}

			name := args[0]
			if name == "latest" {
				if name, err = service.Latest(cmd.Context()); err != nil {
					return err
				}
			}

			result, err := snapshotter.Restore(cmd.Context(), name, overwrite)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s created=%d overwritten=%d skipped=%d\n",
				name, result.Created, result.Overwritten, result.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace sessions that already exist")
	return cmd
}
