package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pthtracker/appforge/internal/model"
)

// mountPollInterval and mountPollTimeout bound the readiness wait after
// `hdiutil attach`. Polling replaces a fixed sleep so slow I/O surfaces as
// an explicit MountTimeout instead of a flaky copy. Variables so tests can
// shorten the window.
var (
	mountPollInterval = 200 * time.Millisecond
	mountPollTimeout  = 10 * time.Second
)

// sizeMarginMB is the fixed safety margin added to the coarse staging
// size estimate when allocating the transient image.
const sizeMarginMB = 20

// runCommand executes an external tool, capturing stdout and stderr
// separately so stderr can be folded into error messages while stdout is
// returned for parsing.
func runCommand(ctx context.Context, bin string, args ...string) (string, error) {
	// #nosec G204 -- bin is a fixed tool name, args come from pipeline paths
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("%s %s failed", bin, strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}
	return stdout.String(), nil
}

// stagingSizeMB returns a coarse size estimate for the staging area via
// `du -sm`, plus the fixed safety margin. A per-file computation would be
// more precise but the margin makes the difference irrelevant.
func stagingSizeMB(ctx context.Context, stagingDir string) (int, error) {
	output, err := runCommand(ctx, "du", "-sm", stagingDir)
	if err != nil {
		return 0, err
	}

	fields := strings.Fields(output)
	if len(fields) == 0 {
		return 0, fmt.Errorf("unexpected du output %q", output)
	}
	size, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("unexpected du output %q: %w", output, err)
	}
	return size + sizeMarginMB, nil
}

// createImage allocates and formats a writable disk image of the given size.
func createImage(ctx context.Context, path, volumeName string, sizeMB int) error {
	_, err := runCommand(ctx, "hdiutil",
		"create",
		"-size", fmt.Sprintf("%dm", sizeMB),
		"-fs", "HFS+",
		"-volname", volumeName,
		"-ov",
		path)
	return err
}

// attachImage mounts a writable image at an explicit mountpoint and then
// polls for the mountpoint to materialize. hdiutil normally returns only
// after mounting, but under slow I/O the volume can lag; the bounded poll
// converts that into a deterministic MountTimeout.
func attachImage(ctx context.Context, imagePath, mountPoint string) error {
	if _, err := runCommand(ctx, "hdiutil",
		"attach", imagePath,
		"-mountpoint", mountPoint,
		"-nobrowse",
		"-noautoopen"); err != nil {
		return err
	}
	return waitForMount(ctx, mountPoint)
}

// waitForMount polls until the mountpoint exists or the timeout elapses.
func waitForMount(ctx context.Context, mountPoint string) error {
	deadline := time.Now().Add(mountPollTimeout)
	for {
		if _, err := os.Stat(mountPoint); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return model.NewStageError(model.StageAssemble, model.MountTimeout,
				fmt.Sprintf("volume did not appear at %s within %s", mountPoint, mountPollTimeout),
				"the disk may be under heavy I/O; re-run the pack stage")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(mountPollInterval):
		}
	}
}

// detachImage unmounts the transient volume, retrying once with -force if
// the first attempt fails; the desktop shell may still be indexing the
// volume when the pipeline is done with it.
func detachImage(ctx context.Context, mountPoint string) error {
	if _, err := runCommand(ctx, "hdiutil", "detach", mountPoint); err != nil {
		slog.Warn("detach failed, retrying with -force", "mount", mountPoint, "error", err)
		_, forceErr := runCommand(ctx, "hdiutil", "detach", "-force", mountPoint)
		return forceErr
	}
	return nil
}

// convertImage compresses the writable image into the final read-only
// distributable.
func convertImage(ctx context.Context, rwPath, finalPath string) error {
	_, err := runCommand(ctx, "hdiutil",
		"convert", rwPath,
		"-format", "UDZO",
		"-imagekey", "zlib-level=9",
		"-ov",
		"-o", finalPath)
	return err
}
