package main

import (
	"fmt"

	"github.com/ast-ral/divine/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "divine",
		Short: "Run packaged WebAssembly guests against a target",
		Long: `divine - Package, upload and run WebAssembly guests.

A guest is packaged into hex chunks, uploaded chunk by chunk into a single
stored record, and run on demand. While it runs, the guest calls back into
the host for target text and returns a list of strings.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to YAML config file")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "Log format: text, json")
	root.PersistentFlags().String("as", "", "Caller id (default: the configured owner)")

	root.AddCommand(
		newPackCmd(),
		newUploadCmd(),
		newClearCmd(),
		newRunCmd(),
		newSchemaCmd(),
	)
	return root
}

// loadConfig reads --config and applies the logging flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if format != "" {
		cfg.Log.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}
