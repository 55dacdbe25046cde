package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/model"
	"github.com/pthtracker/appforge/internal/pipeline"
)

// buildFlags holds the flag values for the build command.
type buildFlags struct {
	archs    string // --archs: comma-separated architecture override
	parallel int    // --parallel: concurrent bundler processes
}

// NewBuildCommand creates the "build" cobra command, which runs the full
// pipeline from prerequisite checks to the verified disk image.
func NewBuildCommand() *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the full packaging pipeline",
		Long: `Compile the application for every configured architecture, merge the
builds into a universal bundle, generate the icon container, assemble the
disk image, and verify the result.

Examples:
  appforge build
  appforge build --archs x86_64,arm64 --parallel 2
  appforge build --config release.jsonc --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.archs, "archs", "", "Comma-separated target architectures (default: configured set)")
	cmd.Flags().IntVar(&flags.parallel, "parallel", 0, "Concurrent architecture builds (0 = all at once)")

	return cmd
}

// runBuild loads the configuration, drives the pipeline, and prints the
// final report.
func runBuild(ctx context.Context, flags *buildFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyArchsFlag(&cfg, flags.archs); err != nil {
		return err
	}

	driver := pipeline.New(cfg)
	driver.Parallel = flags.parallel

	image, err := driver.Run(ctx)
	printWarnings(driver.Warnings())
	if err != nil {
		return err
	}

	printBuildResult(image, driver.Warnings())
	return nil
}

// printBuildResult outputs the pipeline result in text or JSON format.
func printBuildResult(image model.PackageImage, warnings []model.Warning) {
	if IsJSONOutput() {
		printBuildResultJSON(image, warnings)
		return
	}

	fmt.Printf("Packaged %s\n", image.Path)
	fmt.Printf("  Architectures: %s\n", image.ArchLabel)
	fmt.Printf("  Size:          %d bytes\n", image.Size)
	if len(warnings) > 0 {
		fmt.Printf("  Warnings:      %d\n", len(warnings))
	}
}

// printBuildResultJSON outputs the pipeline result as structured JSON.
func printBuildResultJSON(image model.PackageImage, warnings []model.Warning) {
	type warningJSON struct {
		Stage   string `json:"stage"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}

	type resultJSON struct {
		Path      string        `json:"path"`
		SizeBytes int64         `json:"sizeBytes"`
		ArchLabel string        `json:"archLabel"`
		Warnings  []warningJSON `json:"warnings"`
	}

	result := resultJSON{
		Path:      image.Path,
		SizeBytes: image.Size,
		ArchLabel: image.ArchLabel,
		Warnings:  []warningJSON{},
	}
	for _, w := range warnings {
		result.Warnings = append(result.Warnings, warningJSON{
			Stage:   string(w.Stage),
			Kind:    string(w.Kind),
			Message: w.Message,
		})
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}
