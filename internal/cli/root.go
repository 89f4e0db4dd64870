// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the hubdl command tree: search, download, list,
// resume, config, version. A thin cobra layer over pkg/hubdl, grounded on
// the teacher's internal/cli (the same global-flag set, signal-driven
// context, and config-file precedence rules), generalized from a single
// "download" verb to the full command set this engine's richer facade
// supports.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hubdl/internal/hubdlerr"
	"hubdl/pkg/hubdl"
)

// RootOpts holds global CLI flags, set once by Execute's persistent flags
// and read by every subcommand.
type RootOpts struct {
	Token    string
	JSONOut  bool
	Quiet    bool
	Verbose  bool
	Config   string
	LogFile  string
	LogLevel string
	Output   string
	Endpoint string
}

// usageError marks an error as an argument/flag validation failure rather
// than an operational one, so Execute can map it to exit code 3 instead of
// the generic 1.
type usageError struct{ err error }

func (u *usageError) Error() string { return u.err.Error() }
func (u *usageError) Unwrap() error { return u.err }

// exactArgs wraps cobra.ExactArgs(n), tagging a failure as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// noArgs wraps cobra.NoArgs, tagging a failure as a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &usageError{err}
	}
	return nil
}

// Execute runs the CLI with the given version string and returns the
// process exit code: 0 on success, 2 when the failure is AuthRequired, 3
// on an argument/flag validation failure, 1 for anything else.
func Execute(version string) int {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	root := &cobra.Command{
		Use:           "hubdl",
		Short:         "Search, browse, and download model artifacts from a model hub",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	root.PersistentFlags().StringVarP(&ro.Token, "token", "t", "", "Access token (also reads HUBDL_TOKEN env)")
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (minimal output)")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logs")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (YAML)")
	root.PersistentFlags().StringVar(&ro.LogFile, "log-file", "", "Write logs to file (in addition to stderr)")
	root.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVarP(&ro.Output, "output", "o", "", "Destination base directory (default Storage)")
	root.PersistentFlags().StringVar(&ro.Endpoint, "endpoint", "", "Model hub base URL override")

	root.AddCommand(newSearchCmd(ctx, ro))
	root.AddCommand(newDownloadCmd(ctx, ro))
	root.AddCommand(newListCmd(ctx, ro))
	root.AddCommand(newResumeCmd(ctx, ro))
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd(version))
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps err to a process exit code: AuthRequired -> 2, a
// usage/argument error -> 3, everything else -> 1.
func exitCodeFor(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return 3
	}
	if e, ok := hubdlerr.As(err); ok && e.Kind == hubdlerr.KindAuthRequired {
		return 2
	}
	return 1
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// newClient applies config-file defaults, then flags (flags win), and
// constructs a ready-to-use hubdl.Client. Mirrors the teacher's
// applySettingsDefaults precedence: CLI flags > config file > built-in
// defaults.
func newClient(ro *RootOpts) (*hubdl.Client, error) {
	s := hubdl.DefaultSettings()
	applyConfigFile(ro, &s)

	if ro.Output != "" {
		s.OutputDir = ro.Output
	}
	if ro.Endpoint != "" {
		s.Endpoint = ro.Endpoint
	}
	token := strings.TrimSpace(ro.Token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("HUBDL_TOKEN"))
	}
	if token != "" {
		s.Token = token
	}

	return hubdl.New(s)
}

func applyConfigFile(ro *RootOpts, dst *hubdl.Settings) {
	path := ro.Config
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		candidate := filepath.Join(home, ".config", "hubdl.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path == "" {
		return
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var cfg map[string]any
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return
	}

	if v, ok := cfg["output"].(string); ok && v != "" {
		dst.OutputDir = v
	}
	if v, ok := cfg["endpoint"].(string); ok && v != "" {
		dst.Endpoint = v
	}
	if v, ok := cfg["token"].(string); ok && v != "" {
		dst.Token = v
	}
	if v, ok := cfg["concurrent_threads"].(int); ok && v > 0 {
		dst.ConcurrentThreads = v
	}
	if v, ok := cfg["target_chunks"].(int); ok && v > 0 {
		dst.TargetChunks = v
	}
	if v, ok := cfg["max_retries"].(int); ok && v >= 0 {
		dst.MaxRetries = v
	}
	if v, ok := cfg["rate_limit_bytes_per_sec"].(int); ok && v > 0 {
		dst.RateLimitBytesPerSec = int64(v)
		dst.RateLimitEnabled = true
	}
	if v, ok := cfg["download_timeout_secs"].(int); ok && v > 0 {
		dst.DownloadTimeout = time.Duration(v) * time.Second
	}
}
