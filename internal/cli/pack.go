package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/assemble"
	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/merge"
	"github.com/pthtracker/appforge/internal/model"
	"github.com/pthtracker/appforge/internal/toolcache"
)

// NewPackCommand creates the "pack" cobra command, which assembles the disk
// image from the bundle left by a previous merge (or single-arch compile).
func NewPackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Assemble the disk image from the merged bundle",
		Long: `Stage the merged bundle, finalize its manifest and icon, and package it
into the distributable disk image. Requires a previous merge run (or a
single-architecture compile).

Example:
  appforge compile && appforge merge && appforge pack`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd.Context())
		},
	}

	return cmd
}

func runPack(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	merged, err := locateMergedBundle(ctx, cfg)
	if err != nil {
		return err
	}

	// The icon container is optional: absent when the icon stage was
	// skipped or never run.
	icnsPath := filepath.Join(cfg.WorkDir, "icon", "AppIcon.icns")
	if _, err := os.Stat(icnsPath); err != nil {
		icnsPath = ""
	}

	var createDMGBin string
	if cfg.Packer == "create-dmg" {
		createDMGBin, err = toolcache.New(cfg.ToolCacheDir()).AcquireTool(ctx, toolcache.CreateDMG)
		if err != nil {
			return err
		}
	}

	image, warnings, err := assemble.Assemble(ctx, cfg, merged, icnsPath, createDMGBin)
	printWarnings(warnings)
	if err != nil {
		return err
	}

	printBuildResult(image, warnings)
	return nil
}

// locateMergedBundle finds the bundle to package: the universal bundle from
// a previous merge, or the single per-arch bundle when only one
// architecture is configured. The embedded architecture set is read back
// from the executable where possible so the image label stays truthful.
func locateMergedBundle(ctx context.Context, cfg config.BuildConfig) (model.MergedArtifact, error) {
	bundle := filepath.Join(cfg.MergedDir(), cfg.BundleName())
	if len(cfg.Archs) == 1 {
		bundle = filepath.Join(cfg.ArchBuildDir(cfg.Archs[0]), cfg.BundleName())
	}
	if _, err := os.Stat(bundle); err != nil {
		return model.MergedArtifact{}, model.NewStageError(model.StageAssemble, model.AssemblyError,
			fmt.Sprintf("no bundle to package at %s", bundle),
			"run the compile and merge subcommands first")
	}

	exe := filepath.Join(bundle, "Contents", "MacOS", cfg.AppName)
	archs := cfg.Archs
	if read, err := merge.ExecutableArchs(ctx, exe); err == nil {
		archs = read
	}

	return model.MergedArtifact{
		Archs:          archs,
		BundlePath:     bundle,
		ExecutablePath: exe,
	}, nil
}
