package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"collabstream/pkg/config"
)

// defaultConfigPaths are tried in order when --config is not given.
var defaultConfigPaths = []string{
	"configs/config.yaml",
	"/etc/collabstream/config.yaml",
	"config.yaml",
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "collabd",
		Short:         "Livestream collaboration matchmaking service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	load := func() (*config.Config, error) {
		return loadConfig(configPath)
	}

	root.AddCommand(
		newServeCmd(load),
		newSweepCmd(load),
		newResolveCmd(load),
		newTokenCmd(load),
		newWatchCmd(load),
		newBackupCmd(load),
		newRestoreCmd(load),
	)
	return root
}

// loadConfig reads path when given. Otherwise it tries the default locations and
// falls back to built-in defaults with env overrides.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		return cfg, nil
	}

	var lastErr error
	for _, p := range defaultConfigPaths {
		cfg, err := config.Load(p)
		if err == nil {
			return cfg, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
