package verify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"howett.net/plist"

	"github.com/pthtracker/appforge/internal/merge"
	"github.com/pthtracker/appforge/internal/model"
)

// crashLookback bounds how far back the crash-report scan reaches. Older
// diagnostics are noise when debugging a freshly installed build.
const crashLookback = 24 * time.Hour

// diagnosticReportsDir locates the desktop shell's crash report directory.
// A variable so tests can point it at a fixture directory.
var diagnosticReportsDir = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "Logs", "DiagnosticReports")
}

// Inspect examines an installed bundle and returns its diagnostic report:
// executable presence and permission, manifest identity, embedded
// architecture set, and recent crash diagnostics.
//
// A missing or broken executable is reported, not returned as an error;
// only an unreadable bundle path fails the inspection itself.
func Inspect(ctx context.Context, bundlePath string) (model.Report, error) {
	if _, err := os.Stat(bundlePath); err != nil {
		return model.Report{}, model.WrapStageError(model.StageVerify, model.VerifyError,
			fmt.Sprintf("bundle %s not found", bundlePath),
			"pass the path of an installed .app bundle", err)
	}

	report := model.Report{BundlePath: bundlePath}
	report.Manifest = readManifest(bundlePath)

	exeName := report.Manifest.Executable
	if exeName == "" {
		// Without a manifest, fall back to the bundle directory name.
		exeName = strings.TrimSuffix(filepath.Base(bundlePath), ".app")
	}
	report.ExecutablePath = filepath.Join(bundlePath, "Contents", "MacOS", exeName)

	if info, err := os.Stat(report.ExecutablePath); err == nil {
		report.ExecutableOK = info.Mode().Perm()&0111 != 0
	}

	if report.ExecutableOK {
		archs, err := merge.ExecutableArchs(ctx, report.ExecutablePath)
		if err != nil {
			// Architecture info is informational; a missing lipo on the
			// inspecting host should not hide the rest of the report.
			slog.Warn("could not read executable architectures", "error", err)
		} else {
			report.Archs = archs
		}
	}

	report.CrashReports = recentCrashReports(diagnosticReportsDir(), exeName, time.Now())
	return report, nil
}

// readManifest decodes the bundle's Info.plist identity fields. A missing
// or malformed manifest yields zero values; the report still carries the
// executable and crash findings.
func readManifest(bundlePath string) model.BundleManifest {
	raw, err := os.ReadFile(filepath.Join(bundlePath, "Contents", "Info.plist"))
	if err != nil {
		return model.BundleManifest{}
	}

	var m model.BundleManifest
	if _, err := plist.Unmarshal(raw, &m); err != nil {
		slog.Warn("could not parse bundle manifest", "error", err)
		return model.BundleManifest{}
	}
	return m
}

// recentCrashReports lists crash diagnostics for the named app modified
// within the look-back window, newest first.
func recentCrashReports(dir, appName string, now time.Time) []model.CrashReport {
	if dir == "" || appName == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	cutoff := now.Add(-crashLookback)
	var reports []model.CrashReport
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), appName) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}
		reports = append(reports, model.CrashReport{
			Path:    filepath.Join(dir, e.Name()),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].ModTime.After(reports[j].ModTime)
	})
	return reports
}
