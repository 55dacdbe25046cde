package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/builder"
)

// compileFlags holds the flag values for the compile command.
type compileFlags struct {
	archs    string // --archs: comma-separated architecture override
	parallel int    // --parallel: concurrent bundler processes
	noClean  bool   // --no-clean: keep previous build output
}

// NewCompileCommand creates the "compile" cobra command, which runs only
// the per-architecture build stage. Useful for iterating on bundler
// problems without paying for merge and assembly.
func NewCompileCommand() *cobra.Command {
	flags := &compileFlags{}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile per-architecture bundles without packaging them",
		Long: `Run the bundler for every configured architecture and leave the
resulting bundles under the work directory for inspection or a later
merge.

Examples:
  appforge compile
  appforge compile --archs arm64
  appforge compile --no-clean --parallel 2`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.archs, "archs", "", "Comma-separated target architectures (default: configured set)")
	cmd.Flags().IntVar(&flags.parallel, "parallel", 0, "Concurrent architecture builds (0 = all at once)")
	cmd.Flags().BoolVar(&flags.noClean, "no-clean", false, "Keep previous build output instead of cleaning first")

	return cmd
}

func runCompile(ctx context.Context, flags *compileFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyArchsFlag(&cfg, flags.archs); err != nil {
		return err
	}

	if !flags.noClean {
		if err := builder.Clean(cfg); err != nil {
			return err
		}
	}

	artifacts, err := builder.BuildAll(ctx, cfg, flags.parallel)
	if err != nil {
		return err
	}

	for _, a := range artifacts {
		fmt.Printf("Compiled %s: %s\n", a.Arch, a.BundlePath)
	}
	return nil
}
