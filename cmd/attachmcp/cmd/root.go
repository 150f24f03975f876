// Package cmd provides the CLI commands for attachmcp.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/attachmcp/attachmcp/internal/logging"
	"github.com/attachmcp/attachmcp/pkg/version"
)

var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the attachmcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attachmcp",
		Short: "Document attachment MCP server for AI agents",
		Long: `attachmcp lets an AI agent attach documents to a session-scoped store,
then list them, read line ranges, and search them by keyword relevance.

Running attachmcp with no arguments starts the MCP server on stdio.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			// MCP speaks JSON-RPC on stdout, so the default run path
			// must not print anything before serving.
			return runServe(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("attachmcp version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.attachmcp/logs/")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging enables file logging when --debug is set.
func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("Debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// stopLogging closes the log file opened by startLogging.
func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
