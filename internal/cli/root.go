// Package cli implements the cobra-based CLI commands for appforge.
//
// Each subcommand (build, compile, merge, icon, pack, verify) is defined in
// its own file within this package. This file defines the root command that
// serves as the parent for all subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/model"
)

// Global flag variables shared across all subcommands. These are bound to
// cobra persistent flags on the root command, which makes them available to
// every subcommand automatically.
var (
	// configPath points at an explicit build descriptor. Empty means the
	// default appforge.jsonc in the working directory, if present.
	configPath string

	// jsonOutput switches command output to structured JSON for machine
	// consumption. Errors go to stderr in the matching format.
	jsonOutput bool

	// verbose lowers the log level to debug.
	verbose bool
)

// version, commit, and date are set at build time via ldflags. They are
// injected from the main package to display version information.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command. This is the
// entry point for the entire CLI application.
//
// The root command itself does not perform any action; actual functionality
// is provided by the subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "appforge",
		Short: "Cross-architecture packaging pipeline for desktop application bundles",
		Long: `appforge compiles a desktop application for multiple CPU architectures,
fuses the builds into a single universal bundle, and packages the result
into a distributable disk image.

Run "appforge build" for the full pipeline, or the individual stage
subcommands (compile, merge, icon, pack) to re-run a single stage.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the build descriptor (default: ./"+config.DefaultDescriptorName+")")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewCompileCommand())
	rootCmd.AddCommand(NewMergeCommand())
	rootCmd.AddCommand(NewIconCommand())
	rootCmd.AddCommand(NewPackCommand())
	rootCmd.AddCommand(NewVerifyCommand())

	return rootCmd
}

// setupLogging routes slog through the pterm logger so stage progress and
// tool output share one visual style.
func setupLogging() {
	logger := pterm.DefaultLogger
	if verbose {
		logger.Level = pterm.LogLevelDebug
	}
	slog.SetDefault(slog.New(pterm.NewSlogHandler(&logger)))
}

// Execute runs the root command and handles exit codes. This is the main
// entry point called from main.go.
//
// Stage errors carry their own exit codes through the error taxonomy; other
// errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		if se := model.AsStageError(err); se != nil {
			printStageError(se)
			os.Exit(int(se.Kind.ExitCode()))
		}

		printError(err.Error())
		os.Exit(int(model.ExitGeneralError))
	}
}

// printStageError outputs a stage failure with its remediation hint in the
// appropriate format.
func printStageError(se *model.StageError) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"stage":   string(se.Stage),
				"kind":    string(se.Kind),
				"message": se.Message,
			},
		}
		if errMap, ok := errObj["error"].(map[string]interface{}); ok {
			if se.Hint != "" {
				errMap["hint"] = se.Hint
			}
			if se.Err != nil {
				errMap["detail"] = se.Err.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", se)
	if se.Hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", se.Hint)
	}
}

// printError outputs a generic error message in the appropriate format.
func printError(message string) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{"message": message},
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// loadConfig resolves the validated build configuration for a subcommand:
// defaults, descriptor file (if any), then environment overrides.
func loadConfig() (config.BuildConfig, error) {
	return config.Load(configPath)
}

// applyArchsFlag overrides the configured architecture list from a
// comma-separated flag value, when given.
func applyArchsFlag(cfg *config.BuildConfig, archs string) error {
	if archs == "" {
		return nil
	}
	parsed, err := model.ParseArchList(archs)
	if err != nil {
		return err
	}
	cfg.Archs = parsed
	return nil
}

// printWarnings renders collected non-fatal findings in text mode. JSON
// consumers receive warnings inside the structured result instead.
func printWarnings(warnings []model.Warning) {
	if jsonOutput {
		return
	}
	for _, w := range warnings {
		pterm.Warning.Println(w.String())
	}
}

// IsJSONOutput returns whether the --json flag is set. Subcommands use this
// to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
