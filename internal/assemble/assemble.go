package assemble

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

// Assemble packages the merged bundle into the final disk image in
// cfg.DistDir and returns it together with any non-fatal warnings raised
// along the way (currently only presentation failures).
//
// icnsPath is the icon container produced by the icon stage, or empty when
// that stage was skipped, in which case the bundle ships the bundler's
// default icon. createDMGBin is the cached create-dmg executable when the
// create-dmg packer is configured, empty for the default hdiutil flow.
func Assemble(ctx context.Context, cfg config.BuildConfig, merged model.MergedArtifact, icnsPath, createDMGBin string) (model.PackageImage, []model.Warning, error) {
	var warnings []model.Warning

	stagingDir := cfg.StagingDir()
	if err := stage(cfg, merged, icnsPath, stagingDir); err != nil {
		return model.PackageImage{}, warnings, err
	}

	if err := os.MkdirAll(cfg.DistDir, 0755); err != nil {
		return model.PackageImage{}, warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"creating distribution directory", "", err)
	}
	// The file name label and PackageImage.ArchLabel must agree, so both
	// come from the architectures of the bundle actually being packaged.
	archLabel := model.ArchLabel(merged.Archs)
	finalPath := filepath.Join(cfg.DistDir, cfg.ImageNameFor(archLabel))

	var err error
	if createDMGBin != "" {
		err = packWithCreateDMG(ctx, cfg, createDMGBin, stagingDir, icnsPath, finalPath)
	} else {
		warnings, err = packWithHdiutil(ctx, cfg, stagingDir, finalPath, warnings)
	}
	if err != nil {
		return model.PackageImage{}, warnings, err
	}

	info, statErr := os.Stat(finalPath)
	if statErr != nil || info.Size() == 0 {
		return model.PackageImage{}, warnings, model.NewStageError(model.StageAssemble, model.AssemblyError,
			fmt.Sprintf("final image %s is missing or empty", finalPath),
			"re-run the pack stage with --verbose to see the image tool output")
	}

	// Staging is only needed for debugging failed runs.
	if err := os.RemoveAll(stagingDir); err != nil {
		slog.Warn("could not remove staging directory", "path", stagingDir, "error", err)
	}

	return model.PackageImage{
		Path:      finalPath,
		Size:      info.Size(),
		ArchLabel: archLabel,
	}, warnings, nil
}

// stage builds the writable staging area: a copy of the merged bundle with
// its manifest and icon finalized, plus the canonical install-location
// symlink users drag the app onto.
func stage(cfg config.BuildConfig, merged model.MergedArtifact, icnsPath, stagingDir string) error {
	if err := os.RemoveAll(stagingDir); err != nil {
		return model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"clearing previous staging area", "", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"creating staging area", "", err)
	}

	stagedBundle := filepath.Join(stagingDir, cfg.BundleName())
	if err := fsutil.CopyTree(merged.BundlePath, stagedBundle); err != nil {
		return model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"copying merged bundle into staging area", "", err)
	}

	if err := writeManifest(stagedBundle, cfg, icnsPath != ""); err != nil {
		return model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"writing bundle manifest", "", err)
	}

	if icnsPath != "" {
		resources := filepath.Join(stagedBundle, "Contents", "Resources")
		if err := os.MkdirAll(resources, 0755); err != nil {
			return model.WrapStageError(model.StageAssemble, model.AssemblyError,
				"creating bundle resources directory", "", err)
		}
		if err := fsutil.CopyFile(icnsPath, filepath.Join(resources, "AppIcon.icns"), 0644); err != nil {
			return model.WrapStageError(model.StageAssemble, model.AssemblyError,
				"installing icon container", "", err)
		}
	}

	if err := os.Symlink("/Applications", filepath.Join(stagingDir, "Applications")); err != nil {
		return model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"creating Applications symlink", "", err)
	}
	return nil
}

// packWithHdiutil is the manual image flow: allocate a writable image,
// mount it, copy the staged content, optionally style the Finder window,
// detach, and compress into the final distributable.
//
// The transient mount is detached exactly once per invocation: either by
// the explicit detach before conversion, or by the deferred cleanup when
// any earlier step fails.
func packWithHdiutil(ctx context.Context, cfg config.BuildConfig, stagingDir, finalPath string, warnings []model.Warning) ([]model.Warning, error) {
	sizeMB, err := stagingSizeMB(ctx, stagingDir)
	if err != nil {
		return warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"estimating staging area size", "", err)
	}
	slog.Debug("allocating transient image", "sizeMB", sizeMB)

	rwPath := filepath.Join(cfg.WorkDir, "rw.dmg")
	if err := createImage(ctx, rwPath, cfg.AppName, sizeMB); err != nil {
		return warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"allocating transient image", "check free disk space", err)
	}

	mountPoint := filepath.Join(cfg.WorkDir, "mnt")
	if err := attachImage(ctx, rwPath, mountPoint); err != nil {
		if se := model.AsStageError(err); se != nil {
			return warnings, se
		}
		return warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"attaching transient image", "", err)
	}

	// Ownership rule: from here the mount must be released before control
	// returns, whatever happens in the copy or presentation steps.
	mounted := true
	defer func() {
		if mounted {
			if detachErr := detachImage(ctx, mountPoint); detachErr != nil {
				slog.Warn("cleanup detach failed", "mount", mountPoint, "error", detachErr)
			}
		}
	}()

	if _, err := runCommand(ctx, "cp", "-R", stagingDir+string(filepath.Separator)+".", mountPoint); err != nil {
		return warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"copying staged content onto the volume", "", err)
	}

	// Presentation is cosmetic: a failure is recorded and the pipeline
	// moves on with an unstyled window.
	if cfg.PresentationSpec != "" {
		if err := applyPresentation(ctx, cfg.PresentationSpec, cfg.AppName); err != nil {
			slog.Warn("presentation script failed, image ships unstyled", "error", err)
			warnings = append(warnings, model.Warning{
				Stage:   model.StageAssemble,
				Kind:    model.PresentationWarning,
				Message: fmt.Sprintf("presentation script failed: %v", err),
			})
		}
	}

	mounted = false
	if err := detachImage(ctx, mountPoint); err != nil {
		return warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"detaching transient volume", "close any Finder windows showing the volume", err)
	}

	if err := convertImage(ctx, rwPath, finalPath); err != nil {
		return warnings, model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"compressing final image", "", err)
	}

	if err := os.Remove(rwPath); err != nil {
		slog.Warn("could not remove transient image", "path", rwPath, "error", err)
	}
	return warnings, nil
}

// packWithCreateDMG delegates the whole image flow to the cached create-dmg
// tool, which owns its own staging, styling, and compression.
func packWithCreateDMG(ctx context.Context, cfg config.BuildConfig, bin, stagingDir, icnsPath, finalPath string) error {
	args := []string{"--volname", cfg.AppName}
	if icnsPath != "" {
		args = append(args, "--volicon", icnsPath)
	}
	args = append(args, finalPath, stagingDir)

	if _, err := runCommand(ctx, bin, args...); err != nil {
		return model.WrapStageError(model.StageAssemble, model.AssemblyError,
			"create-dmg failed", "re-run with --verbose for the tool output", err)
	}
	return nil
}
