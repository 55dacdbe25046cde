package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/merge"
	"github.com/pthtracker/appforge/internal/model"
)

// NewMergeCommand creates the "merge" cobra command, which fuses the
// per-architecture bundles left by a previous compile run.
func NewMergeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fuse compiled per-architecture bundles into a universal bundle",
		Long: `Merge the per-architecture bundles produced by "appforge compile" into
a single universal bundle. Requires at least two distinct architectures.

Example:
  appforge compile && appforge merge`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.Context())
		},
	}

	return cmd
}

func runMerge(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	artifacts, err := collectArtifacts(cfg)
	if err != nil {
		return err
	}

	merged, err := merge.Merge(ctx, cfg, artifacts)
	if err != nil {
		return err
	}

	fmt.Printf("Merged %s: %s\n", model.ArchLabel(merged.Archs), merged.BundlePath)
	return nil
}

// collectArtifacts locates the per-architecture bundles of a previous
// compile run for every configured architecture.
func collectArtifacts(cfg config.BuildConfig) ([]model.Artifact, error) {
	artifacts := make([]model.Artifact, 0, len(cfg.Archs))
	for _, arch := range cfg.Archs {
		bundle := filepath.Join(cfg.ArchBuildDir(arch), cfg.BundleName())
		if _, err := os.Stat(bundle); err != nil {
			return nil, model.NewStageError(model.StageMerge, model.MergeError,
				fmt.Sprintf("no compiled bundle for %s at %s", arch, bundle),
				"run the compile subcommand first")
		}
		artifacts = append(artifacts, model.Artifact{
			Arch:           arch,
			BundlePath:     bundle,
			ExecutablePath: filepath.Join(bundle, "Contents", "MacOS", cfg.AppName),
		})
	}
	return artifacts, nil
}
