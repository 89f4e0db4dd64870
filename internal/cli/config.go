// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hubdl/pkg/hubdl"
)

// DefaultConfig returns the default configuration, keyed the same way
// applyConfigFile reads it back.
func DefaultConfig() map[string]any {
	s := hubdl.DefaultSettings()
	return map[string]any{
		"output":                   s.OutputDir,
		"endpoint":                 s.Endpoint,
		"token":                    "",
		"concurrent_threads":       s.ConcurrentThreads,
		"target_chunks":            s.TargetChunks,
		"max_retries":              s.MaxRetries,
		"rate_limit_bytes_per_sec": 0,
		"download_timeout_secs":    int(s.DownloadTimeout.Seconds()),
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Long: `Creates a default configuration file at ~/.config/hubdl.yaml

The configuration file sets default values for output, endpoint, token,
concurrent_threads, target_chunks, max_retries, rate_limit_bytes_per_sec
and download_timeout_secs.
CLI flags always override config file values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := defaultConfigPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
			}

			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return fmt.Errorf("could not create config directory: %w", err)
			}

			data, err := yaml.Marshal(DefaultConfig())
			if err != nil {
				return err
			}

			if err := os.WriteFile(configPath, data, 0o644); err != nil {
				return fmt.Errorf("could not write config file: %w", err)
			}

			fmt.Printf("created config file: %s\n", configPath)
			fmt.Println()
			fmt.Println("edit this file to set your defaults, for example:")
			fmt.Println("  - your model hub token")
			fmt.Println("  - default output directory")
			fmt.Println("  - concurrency and rate-limit settings")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := defaultConfigPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(configPath); err != nil {
				fmt.Println("no config file found.")
				fmt.Printf("run 'hubdl config init' to create one at:\n  %s\n", configPath)
				return nil
			}

			data, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}

			fmt.Printf("config file: %s\n\n", configPath)
			fmt.Println(string(data))

			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, err := defaultConfigPath()
			if err != nil {
				return
			}
			fmt.Println(configPath)
		},
	}
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "hubdl.yaml"), nil
}
