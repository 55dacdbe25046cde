package merge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pthtracker/appforge/internal/model"
)

// lipoBin is resolved from PATH, which also lets tests substitute a stub.
const lipoBin = "lipo"

// ExecutableArchs returns the set of architectures embedded in an
// executable, as reported by `lipo -archs`. Shared with the verifier, which
// reports the same information for installed bundles.
func ExecutableArchs(ctx context.Context, executable string) ([]model.Arch, error) {
	output, err := runLipo(ctx, "-archs", executable)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(output)
	archs := make([]model.Arch, 0, len(fields))
	for _, f := range fields {
		a, parseErr := model.ParseArch(f)
		if parseErr != nil {
			// lipo can report slices we do not target (i386, armv7);
			// surface them verbatim rather than dropping them silently.
			return nil, fmt.Errorf("executable contains unexpected slice %q", f)
		}
		archs = append(archs, a)
	}
	return archs, nil
}

// runLipo executes lipo with the given arguments. stderr is captured
// separately and folded into the error message, mirroring how all external
// tool wrappers in this codebase report failures.
func runLipo(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 -- args are constructed from artifact paths, not user input
	cmd := exec.CommandContext(ctx, lipoBin, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("lipo %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message = fmt.Sprintf("%s: %s", message, s)
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}
	return stdout.String(), nil
}
