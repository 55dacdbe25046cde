package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/pthtracker/appforge/internal/assemble"
	"github.com/pthtracker/appforge/internal/builder"
	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/icon"
	"github.com/pthtracker/appforge/internal/merge"
	"github.com/pthtracker/appforge/internal/model"
	"github.com/pthtracker/appforge/internal/toolcache"
	"github.com/pthtracker/appforge/internal/verify"
)

// State is the driver's position in the stage sequence. Failed is terminal
// and reachable from every state.
type State string

const (
	StateInit          State = "init"
	StatePrereqChecked State = "prereq-checked"
	StateCleaned       State = "cleaned"
	StateBuilt         State = "built"
	StateMerged        State = "merged"
	StateIconReady     State = "icon-ready"
	StateIconSkipped   State = "icon-skipped"
	StateAssembled     State = "assembled"
	StateVerified      State = "verified"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Driver owns the shared configuration and runs the stages in order.
type Driver struct {
	cfg   config.BuildConfig
	cache *toolcache.Cache

	// Parallel bounds concurrent architecture builds. Zero runs every
	// architecture at once.
	Parallel int

	state    State
	warnings []model.Warning
}

// New creates a Driver for the given configuration.
func New(cfg config.BuildConfig) *Driver {
	return &Driver{
		cfg:   cfg,
		cache: toolcache.New(cfg.ToolCacheDir()),
		state: StateInit,
	}
}

// State returns the driver's current state.
func (d *Driver) State() State {
	return d.state
}

// Warnings returns the non-fatal findings collected across all stages,
// for the final report.
func (d *Driver) Warnings() []model.Warning {
	return d.warnings
}

// Run executes the full pipeline and returns the final package image.
// On the first fatal stage error the driver transitions to Failed and
// returns that error; resource-release cleanup is handled inside the
// failing stage itself (the assembler always detaches its mount).
//
// The work directory is removed only on success; after a failure it is
// left in place for diagnosis and removed by the next run's clean stage.
func (d *Driver) Run(ctx context.Context) (model.PackageImage, error) {
	createDMGBin, err := d.checkPrereqs(ctx)
	if err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	d.state = StatePrereqChecked

	if err := builder.Clean(d.cfg); err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	d.state = StateCleaned

	slog.Info("building", "archs", d.cfg.Archs, "parallel", d.Parallel)
	artifacts, err := builder.BuildAll(ctx, d.cfg, d.Parallel)
	if err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	d.state = StateBuilt

	merged, err := d.mergeStage(ctx, artifacts)
	if err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	d.state = StateMerged

	iconRes, err := icon.BuildIconContainer(ctx, d.cfg)
	if err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	if iconRes.Skipped {
		d.warnings = append(d.warnings, model.Warning{
			Stage:   model.StageIcon,
			Kind:    model.IconUnavailable,
			Message: iconRes.Reason + "; the image ships the default icon",
		})
		d.state = StateIconSkipped
	} else {
		d.state = StateIconReady
	}

	image, assembleWarnings, err := assemble.Assemble(ctx, d.cfg, merged, iconRes.IcnsPath, createDMGBin)
	d.warnings = append(d.warnings, assembleWarnings...)
	if err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	d.state = StateAssembled

	if err := d.verifyStage(ctx, merged); err != nil {
		return model.PackageImage{}, d.fail(err)
	}
	d.state = StateVerified

	if err := os.RemoveAll(d.cfg.WorkDir); err != nil {
		slog.Warn("could not remove work directory", "path", d.cfg.WorkDir, "error", err)
	}
	d.state = StateDone

	return image, nil
}

// checkPrereqs verifies every required external tool before any mutation,
// and resolves the create-dmg tool through the cache when that packer is
// selected. Missing required tools abort with a remediation hint.
func (d *Driver) checkPrereqs(ctx context.Context) (string, error) {
	required := []struct {
		bin  string
		hint string
		when bool
	}{
		{d.cfg.BundlerBin, "install the application bundler (pip install pyinstaller)", true},
		{"lipo", "install the Xcode command line tools", len(d.cfg.Archs) > 1},
		{"hdiutil", "hdiutil ships with the OS; this pipeline must run on a Mac host", d.cfg.Packer == "hdiutil"},
		{"du", "coreutils is required for size estimation", d.cfg.Packer == "hdiutil"},
	}

	for _, r := range required {
		if !r.when {
			continue
		}
		if _, err := exec.LookPath(r.bin); err != nil {
			return "", model.NewStageError(model.StagePrereq, model.PrereqMissing,
				fmt.Sprintf("required tool %q not found", r.bin), r.hint)
		}
	}

	if d.cfg.Packer == "create-dmg" {
		path, err := d.cache.AcquireTool(ctx, toolcache.CreateDMG)
		if err != nil {
			return "", err
		}
		return path, nil
	}
	return "", nil
}

// mergeStage fuses multi-arch artifacts; a single-architecture build has
// nothing to merge and passes its artifact through unchanged.
func (d *Driver) mergeStage(ctx context.Context, artifacts []model.Artifact) (model.MergedArtifact, error) {
	if len(artifacts) == 1 {
		a := artifacts[0]
		return model.MergedArtifact{
			Archs:          []model.Arch{a.Arch},
			BundlePath:     a.BundlePath,
			ExecutablePath: a.ExecutablePath,
		}, nil
	}
	return merge.Merge(ctx, d.cfg, artifacts)
}

// verifyStage inspects the merged bundle before the work directory is
// discarded: the executable must be runnable and, for multi-arch builds,
// must report exactly the configured architecture set.
func (d *Driver) verifyStage(ctx context.Context, merged model.MergedArtifact) error {
	report, err := verify.Inspect(ctx, merged.BundlePath)
	if err != nil {
		return err
	}
	if !report.ExecutableOK {
		return model.NewStageError(model.StageVerify, model.VerifyError,
			"packaged executable is missing or not executable", "")
	}
	if len(d.cfg.Archs) > 1 && !model.ArchSetEqual(report.Archs, d.cfg.Archs) {
		return model.NewStageError(model.StageVerify, model.VerifyError,
			fmt.Sprintf("packaged executable reports %v, expected %v", report.Archs, d.cfg.Archs), "")
	}
	return nil
}

// fail transitions the driver to its terminal failure state.
func (d *Driver) fail(err error) error {
	d.state = StateFailed
	return err
}
