package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/fsutil"
	"github.com/pthtracker/appforge/internal/model"
)

// Merge combines two or more per-architecture artifacts into one universal
// bundle under cfg.MergedDir().
//
// Algorithm: the first artifact's tree is copied as the structural template,
// then the primary executable is replaced by a lipo-fused fat binary built
// from every input's executable. Non-executable resources are taken from
// the template only; they are assumed (not verified) to be identical across
// inputs, since the bundler embeds timestamps that defeat byte comparison.
//
// Post-condition: the merged executable's reported architecture set equals
// the union of the inputs, or the merge fails with MergeError. Per-arch
// artifact trees are deleted only after a successful merge.
func Merge(ctx context.Context, cfg config.BuildConfig, artifacts []model.Artifact) (model.MergedArtifact, error) {
	if len(artifacts) < 2 {
		return model.MergedArtifact{}, model.NewStageError(model.StageMerge, model.MergeError,
			fmt.Sprintf("universal merge requires at least 2 architectures, got %d", len(artifacts)),
			"a single-architecture build does not need a merge step")
	}

	want := make([]model.Arch, 0, len(artifacts))
	seen := make(map[model.Arch]bool, len(artifacts))
	for _, a := range artifacts {
		if seen[a.Arch] {
			return model.MergedArtifact{}, model.NewStageError(model.StageMerge, model.MergeError,
				fmt.Sprintf("duplicate architecture %s in merge inputs", a.Arch), "")
		}
		seen[a.Arch] = true
		want = append(want, a.Arch)
	}

	template := artifacts[0]
	mergedBundle := filepath.Join(cfg.MergedDir(), cfg.BundleName())

	// A fresh destination keeps reruns of the standalone merge subcommand
	// deterministic.
	if err := os.RemoveAll(mergedBundle); err != nil {
		return model.MergedArtifact{}, model.WrapStageError(model.StageMerge, model.MergeError,
			"clearing previous merged bundle", "", err)
	}
	if err := os.MkdirAll(cfg.MergedDir(), 0755); err != nil {
		return model.MergedArtifact{}, model.WrapStageError(model.StageMerge, model.MergeError,
			"creating merged output directory", "", err)
	}

	slog.Debug("copying template bundle", "template", template.BundlePath, "arch", template.Arch)
	if err := fsutil.CopyTree(template.BundlePath, mergedBundle); err != nil {
		return model.MergedArtifact{}, model.WrapStageError(model.StageMerge, model.MergeError,
			"copying template bundle tree", "", err)
	}
	for _, a := range artifacts[1:] {
		slog.Debug("resources taken from template only", "skipped", a.BundlePath)
	}

	mergedExe := filepath.Join(mergedBundle, "Contents", "MacOS", cfg.AppName)

	// lipo -create <exe>... -output <fat exe>
	args := []string{"-create"}
	for _, a := range artifacts {
		args = append(args, a.ExecutablePath)
	}
	args = append(args, "-output", mergedExe)
	if _, err := runLipo(ctx, args...); err != nil {
		return model.MergedArtifact{}, model.WrapStageError(model.StageMerge, model.MergeError,
			"fusing architecture slices", "ensure Xcode command line tools are installed", err)
	}

	got, err := ExecutableArchs(ctx, mergedExe)
	if err != nil {
		return model.MergedArtifact{}, model.WrapStageError(model.StageMerge, model.MergeError,
			"inspecting merged executable", "", err)
	}
	if !model.ArchSetEqual(got, want) {
		return model.MergedArtifact{}, model.NewStageError(model.StageMerge, model.MergeError,
			fmt.Sprintf("merged executable reports %v, expected %v", got, want),
			"one of the per-arch builds may have produced a thin binary for the wrong target")
	}

	// Inputs are consumed: drop the per-arch trees now that the universal
	// bundle stands on its own.
	for _, a := range artifacts {
		if err := os.RemoveAll(a.BundlePath); err != nil {
			return model.MergedArtifact{}, model.WrapStageError(model.StageMerge, model.MergeError,
				fmt.Sprintf("removing consumed artifact %s", a.BundlePath), "", err)
		}
	}

	return model.MergedArtifact{
		Archs:          want,
		BundlePath:     mergedBundle,
		ExecutablePath: mergedExe,
	}, nil
}
