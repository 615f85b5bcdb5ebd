// Package cli implements the coffer command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/config"
	"github.com/mrz1836/coffer/internal/output"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Command group identifiers.
const (
	groupBank   = "bank"
	groupWallet = "wallet"
	groupConfig = "config"
)

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coffer",
	Short: "Deposit to and withdraw from a Bank contract",
	Long: `Coffer is a terminal client for a Bank smart contract holding ETH.

It keeps a signing key in an encrypted keystore, shows the Bank balance and
event history of your account, and walks deposits and withdrawals through
validation, gas estimation, broadcast and confirmation. Every outcome is
reported exactly once, and the matching contract event is announced when it
arrives.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := initGlobals(); err != nil {
			return err
		}
		SetCmdContext(cmd, NewCommandContext(cfg, logger, formatter))
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx as every command's context.
// Cancelling ctx stops pending waits and subscriptions.
func ExecuteContext(ctx context.Context) error {
	listSubcommands(rootCmd)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		format := output.FormatText
		if formatter != nil {
			format = formatter.Format()
		}
		_ = output.FormatError(os.Stderr, err, format)
		return err
	}
	return nil
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	return coffererr.ExitCode(err)
}

// initGlobals initializes global configuration, logger, and formatter.
func initGlobals() error {
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		if !os.IsNotExist(err) {
			return coffererr.WithCause(coffererr.ErrConfigInvalid, err)
		}
		cfg = config.Defaults()
	}
	cfg.Home = home

	config.ApplyEnvironment(cfg)

	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.GetLoggingFile())
	if err != nil {
		logger = config.NullLogger()
	}

	formatter = output.NewFormatter(output.ParseFormat(cfg.Output.DefaultFormat), os.Stdout)
	logger.Debug("coffer started (home %s, rpc %s)", cfg.GetHome(), cfg.GetRPC())
	return nil
}

// cleanup releases resources.
func cleanup() {
	if logger != nil {
		_ = logger.Close()
	}
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "coffer data directory (default: ~/.coffer)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupBank, Title: "Bank Operations:"},
		&cobra.Group{ID: groupWallet, Title: "Wallet Operations:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID(groupConfig)
	rootCmd.SetCompletionCommandGroupID(groupConfig)
}
