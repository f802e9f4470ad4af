package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagFormat    string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is built from the persistent flags before any command runs.
var logger = slog.New(slog.DiscardHandler)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "scriptrun",
	Short:         "Run project scripts through embedded script engines",
	Long:          "scriptrun discovers script files under a project's script source roots, evaluates each through the engine for its extension (JavaScript, Lua, Risor), then evaluates an optional inline script.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateChoice("log-level", flagLogLevel, validLogLevels); err != nil {
			return err
		}
		if err := validateChoice("log-format", flagLogFormat, validLogFormats); err != nil {
			return err
		}
		if err := validateChoice("format", flagFormat, validFormats); err != nil {
			return err
		}
		logger = newLogger(flagLogLevel, flagLogFormat, os.Stderr)
		return nil
	},
	// No Run: prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format: text|json")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format for check, engines and history: json|text")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(historyCmd)
}

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validFormats    = []string{"json", "text"}
)

// newLogger builds the process logger. Logs always go to w (stderr in
// production) so that command output on stdout stays machine-readable.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// validateChoice checks that a flag value is one of valid.
func validateChoice(flag, value string, valid []string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q: must be one of %s", flag, value, strings.Join(valid, "|"))
}
