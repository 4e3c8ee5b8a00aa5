package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/tally/internal/config"
	"github.com/dyluth/tally/internal/logging"
	"github.com/dyluth/tally/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds state shared by every subcommand of one invocation.
type app struct {
	configPath string
	logLevel   string
	config     *config.TallyConfig
}

// NewRootCmd builds the command tree. Each call returns independent flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tally",
		Short: "tally - Nostr thread resolver",
		Long: `tally reconstructs Nostr discussions from an identifier.

Given a note1, nevent1, naddr1 or hex event id, tally finds the thread root,
walks the reply graph across a set of relays, deduplicates what they return
and attaches author profiles. Relays are unreliable and incomplete; tally
reports the best-effort union of what they serve.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRunE: a.setup,
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", config.DefaultPath, "Path to tally.yml (defaults apply if missing)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(
		newThreadCmd(a),
		newDecodeCmd(a),
		newProfileCmd(a),
		newRelaysCmd(a),
	)

	return rootCmd
}

// setup loads configuration and configures logging before any subcommand.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	printer.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix or remove %s", a.configPath)},
		)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := logging.Setup(cfg.Log.Level, *cfg.Log.Pretty, cmd.ErrOrStderr()); err != nil {
		return printer.Error(
			"invalid log level",
			err.Error(),
			[]string{"Valid levels: trace, debug, info, warn, error"},
		)
	}
	a.config = cfg
	return nil
}

// Execute runs the CLI. This is called by main.main(). Ctrl-C cancels the
// running resolution.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
