package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/model"
)

// Clean removes all intermediate build state and any previously produced
// image for this configuration. It runs exactly once per pipeline
// invocation, before the first architecture build, which makes a retried
// run idempotent: every run starts from a blank slate.
//
// The tool cache directory is deliberately not touched.
func Clean(cfg config.BuildConfig) error {
	if err := os.RemoveAll(cfg.WorkDir); err != nil {
		return model.WrapStageError(model.StageClean, model.CleanError,
			"removing previous build output", "check permissions on the work directory", err)
	}
	// Remove the prior image so a failed run cannot leave a stale
	// distributable that looks current.
	if err := os.Remove(filepath.Join(cfg.DistDir, cfg.ImageName())); err != nil && !os.IsNotExist(err) {
		return model.WrapStageError(model.StageClean, model.CleanError,
			"removing previous package image", "", err)
	}
	return nil
}

// Build compiles the application for a single architecture and returns the
// resulting Artifact.
//
// Success is detected by checking that the expected bundle directory exists
// after the run, not by the bundler's exit code alone: PyInstaller has been
// observed to exit 0 on partially failed .app assembly.
func Build(ctx context.Context, cfg config.BuildConfig, arch model.Arch) (model.Artifact, error) {
	distPath := cfg.ArchBuildDir(arch)
	workPath := filepath.Join(cfg.WorkDir, "scratch", arch.String())

	args := []string{
		"--noconfirm",
		"--windowed",
		"--name", cfg.AppName,
		"--target-arch", arch.String(),
		"--distpath", distPath,
		"--workpath", workPath,
		"--specpath", workPath,
		"--paths", cfg.SourceDir,
		cfg.EntryPoint,
	}

	slog.Debug("invoking bundler", "bundler", cfg.BundlerBin, "arch", arch)
	if output, err := runBundler(ctx, cfg.BundlerBin, args...); err != nil {
		return model.Artifact{}, model.WrapStageError(model.StageCompile, model.CompileError,
			fmt.Sprintf("bundler failed for %s: %s", arch, lastLine(output)),
			"run the compile subcommand with --verbose for the full bundler log", err)
	}

	bundle := filepath.Join(distPath, cfg.BundleName())
	if _, err := os.Stat(bundle); err != nil {
		return model.Artifact{}, model.NewStageError(model.StageCompile, model.CompileError,
			fmt.Sprintf("bundler exited cleanly but %s is missing", bundle),
			"inspect the bundler warnings; a hidden import may have aborted .app assembly")
	}

	executable := filepath.Join(bundle, "Contents", "MacOS", cfg.AppName)
	if _, err := os.Stat(executable); err != nil {
		return model.Artifact{}, model.NewStageError(model.StageCompile, model.CompileError,
			fmt.Sprintf("bundle %s has no primary executable", bundle), "")
	}

	return model.Artifact{Arch: arch, BundlePath: bundle, ExecutablePath: executable}, nil
}

// BuildAll compiles every configured architecture through a bounded worker
// pool and returns the artifacts in configuration order.
//
// parallel bounds the number of concurrent bundler processes; values below
// one run all architectures at once. The first error cancels the remaining
// builds via the group context.
func BuildAll(ctx context.Context, cfg config.BuildConfig, parallel int) ([]model.Artifact, error) {
	artifacts := make([]model.Artifact, len(cfg.Archs))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	for i, arch := range cfg.Archs {
		g.Go(func() error {
			a, err := Build(gctx, cfg, arch)
			if err != nil {
				return err
			}
			// Indexed writes keep configuration order regardless of
			// completion order; no two goroutines share an index.
			artifacts[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// runBundler executes the bundler and returns its combined output. On
// failure the output is returned alongside the error so callers can surface
// the tail of the bundler log.
func runBundler(ctx context.Context, bin string, args ...string) (string, error) {
	// #nosec G204 -- bin and args come from the immutable build config
	cmd := exec.CommandContext(ctx, bin, args...)

	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	return out.String(), err
}

// lastLine returns the final non-empty line of a bundler log, which is
// almost always the actual error message.
func lastLine(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "(no output)"
}
