// Package cli implements the typedrest command-line interface.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/typedrest/typedrest/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "typedrest",
	Short: "Dispatch declarative HTTP calls from an OpenAPI document",
	Long: `typedrest turns an OpenAPI document into callable methods and dispatches
them through the typed request engine: path/query/header/body bindings,
status classification, and converted response bodies.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	logLevel  string
	logFormat string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
}

// newLogger builds the operational logger from the persistent flags.
func newLogger() *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(logLevel),
		Format: logging.Format(logFormat),
	})
}

// Execute runs the CLI.
func Execute(version, commit string) error {
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
	return rootCmd.Execute()
}
