// Package cmd provides the CLI commands for bananaindex.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/bananaindex/internal/errors"
	"github.com/Aman-CERP/bananaindex/internal/logging"
	"github.com/Aman-CERP/bananaindex/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	debugMode      bool
	jsonLogs       bool
	rootDir        string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the bananaindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bananaindex",
		Short: "Index and search prompt-case collections",
		Long: `bananaindex indexes the prompt cases and READMEs of a repository of
awesome-* submodules into a full-text engine, and serves search over
the CLI, an HTTP API and MCP.

Run 'bananaindex index' in the repository root to build the index.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("bananaindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to "+logging.DefaultLogDir())
	cmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "Write logs to stderr as JSON")
	cmd.PersistentFlags().StringVarP(&rootDir, "root", "C", ".", "Repository root holding .gitmodules")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newCaseCmd())
	cmd.AddCommand(newSubmodulesCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the default logger. Logs always go to stderr so
// stdout stays clean for command output and the MCP stdio transport.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	cfg.JSON = jsonLogs

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Short()))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), errors.FormatForCLI(err))
	}
	return err
}
