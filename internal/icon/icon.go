package icon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/model"
)

// iconutilBin compiles an .iconset directory into an .icns container.
const iconutilBin = "iconutil"

// baseSizes are the required icon resolutions. Each base size is rendered
// twice: icon_<N>x<N>.png at N pixels and icon_<N>x<N>@2x.png at 2N pixels,
// giving the ten entries iconutil expects for a complete container.
var baseSizes = []int{16, 32, 128, 256, 512}

// converter renders the master icon at one target size. Implementations
// wrap external tools, so each carries the binary name used for the
// availability probe.
type converter struct {
	bin    string
	render func(ctx context.Context, master, dest string, px int) error
}

// converters in priority order: vector renderer first (best quality from
// an SVG master), then the system raster resizer, then the thumbnail
// generator as a last resort.
var converters = []converter{
	{bin: "rsvg-convert", render: renderRsvg},
	{bin: "sips", render: renderSips},
	{bin: "qlmanage", render: renderQlmanage},
}

// Result reports the outcome of the icon stage. Skipped is true when the
// master asset, a converter, or iconutil itself is missing; Reason names
// what was missing so the operator-facing warning is accurate. IcnsPath is
// set only on a successful build.
type Result struct {
	Skipped  bool
	Reason   string
	IcnsPath string
}

// BuildIconContainer renders every required size from the configured master
// icon and compiles the resulting iconset into an .icns container under the
// work directory.
//
// Missing tooling or a missing master asset yields a skipped (non-error)
// result. A converter that is present but fails a specific size is an
// IconError: shipping a partial iconset would produce a malformed container.
func BuildIconContainer(ctx context.Context, cfg config.BuildConfig) (Result, error) {
	if _, err := os.Stat(cfg.IconPath); err != nil {
		slog.Warn("master icon asset not found, packaging with default icon", "path", cfg.IconPath)
		return Result{Skipped: true,
			Reason: fmt.Sprintf("master icon asset %s not found", cfg.IconPath)}, nil
	}
	if _, err := exec.LookPath(iconutilBin); err != nil {
		slog.Warn("iconutil not found, packaging with default icon")
		return Result{Skipped: true, Reason: "iconutil not found on this host"}, nil
	}

	conv, ok := pickConverter()
	if !ok {
		slog.Warn("no icon converter available, packaging with default icon",
			"tried", converterNames())
		return Result{Skipped: true,
			Reason: fmt.Sprintf("no icon converter available (tried %s)",
				strings.Join(converterNames(), ", "))}, nil
	}
	slog.Debug("selected icon converter", "tool", conv.bin)

	iconsetDir := cfg.IconsetDir()
	if err := os.MkdirAll(iconsetDir, 0755); err != nil {
		return Result{}, model.WrapStageError(model.StageIcon, model.IconError,
			"creating iconset directory", "", err)
	}

	for _, base := range baseSizes {
		entries := []struct {
			name string
			px   int
		}{
			{fmt.Sprintf("icon_%dx%d.png", base, base), base},
			{fmt.Sprintf("icon_%dx%d@2x.png", base, base), base * 2},
		}
		for _, e := range entries {
			dest := filepath.Join(iconsetDir, e.name)
			if err := conv.render(ctx, cfg.IconPath, dest, e.px); err != nil {
				return Result{}, model.WrapStageError(model.StageIcon, model.IconError,
					fmt.Sprintf("rendering %s with %s", e.name, conv.bin),
					"a partial iconset would ship a malformed container; fix the master asset or tool", err)
			}
			if _, err := os.Stat(dest); err != nil {
				return Result{}, model.NewStageError(model.StageIcon, model.IconError,
					fmt.Sprintf("%s reported success but %s is missing", conv.bin, e.name), "")
			}
		}
	}

	icnsPath := filepath.Join(filepath.Dir(iconsetDir), "AppIcon.icns")
	if err := runTool(ctx, iconutilBin, "-c", "icns", "-o", icnsPath, iconsetDir); err != nil {
		return Result{}, model.WrapStageError(model.StageIcon, model.IconError,
			"compiling icns container", "", err)
	}

	return Result{IcnsPath: icnsPath}, nil
}

// pickConverter returns the first converter whose binary is on PATH.
func pickConverter() (converter, bool) {
	for _, c := range converters {
		if _, err := exec.LookPath(c.bin); err == nil {
			return c, true
		}
	}
	return converter{}, false
}

func converterNames() []string {
	names := make([]string, len(converters))
	for i, c := range converters {
		names[i] = c.bin
	}
	return names
}

// renderRsvg rasterizes a vector master at the target size.
func renderRsvg(ctx context.Context, master, dest string, px int) error {
	size := strconv.Itoa(px)
	return runTool(ctx, "rsvg-convert", "-w", size, "-h", size, "-o", dest, master)
}

// renderSips resizes a raster master with the system image tool.
func renderSips(ctx context.Context, master, dest string, px int) error {
	size := strconv.Itoa(px)
	return runTool(ctx, "sips", "-z", size, size, master, "--out", dest)
}

// renderQlmanage generates a thumbnail at the target size. qlmanage only
// accepts an output directory and names the file after the source, so the
// result is renamed into place.
func renderQlmanage(ctx context.Context, master, dest string, px int) error {
	outDir := filepath.Dir(dest)
	if err := runTool(ctx, "qlmanage", "-t", "-s", strconv.Itoa(px), "-o", outDir, master); err != nil {
		return err
	}
	produced := filepath.Join(outDir, filepath.Base(master)+".png")
	return os.Rename(produced, dest)
}

// runTool executes a converter command, folding stderr into the error.
func runTool(ctx context.Context, bin string, args ...string) error {
	// #nosec G204 -- bin is a fixed tool name, args come from config paths
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr strings.Builder
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return fmt.Errorf("%s: %s: %w", bin, s, err)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
