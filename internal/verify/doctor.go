package verify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pterm/pterm"

	"github.com/pthtracker/appforge/internal/model"
)

// Menu choices offered by the interactive doctor.
const (
	choiceRelaunch = "Relaunch with verbose output"
	choiceErrors   = "Relaunch and show error lines only"
	choiceCrash    = "Show most recent crash report"
	choiceQuit     = "Quit"
)

// errorKeywords are matched case-insensitively when filtering relaunch
// output. Traceback covers the Python runtime inside the bundle.
var errorKeywords = []string{"error", "exception", "traceback", "fatal", "panic"}

// RunDoctor drives the interactive diagnostic session for an installed
// bundle: it prints the inspection summary, then loops on an operator menu
// until the operator quits. It never mutates the bundle.
func RunDoctor(ctx context.Context, bundlePath string) error {
	report, err := Inspect(ctx, bundlePath)
	if err != nil {
		return err
	}

	printSummary(report)

	for {
		choice, err := pterm.DefaultInteractiveSelect.
			WithDefaultText("Select a diagnostic action").
			WithOptions([]string{choiceRelaunch, choiceErrors, choiceCrash, choiceQuit}).
			Show()
		if err != nil {
			return err
		}

		switch choice {
		case choiceRelaunch:
			output := relaunch(ctx, report.ExecutablePath)
			pterm.DefaultBox.WithTitle("launch output").Println(output)
		case choiceErrors:
			lines := filterErrorLines(relaunch(ctx, report.ExecutablePath))
			if len(lines) == 0 {
				pterm.Success.Println("no error lines in launch output")
				continue
			}
			for _, l := range lines {
				pterm.Error.Println(l)
			}
		case choiceCrash:
			if len(report.CrashReports) == 0 {
				pterm.Info.Printfln("no crash reports in the last %s", crashLookback)
				continue
			}
			showCrashReport(report.CrashReports[0])
		case choiceQuit:
			return nil
		}
	}
}

// printSummary renders the inspection findings.
func printSummary(report model.Report) {
	pterm.DefaultSection.Println("Bundle inspection")

	data := [][]string{
		{"Bundle", report.BundlePath},
		{"Name", report.Manifest.Name},
		{"Identifier", report.Manifest.Identifier},
		{"Version", report.Manifest.Version},
		{"Executable", executableStatus(report)},
		{"Architectures", archList(report.Archs)},
		{"Recent crashes", fmt.Sprintf("%d", len(report.CrashReports))},
	}
	_ = pterm.DefaultTable.WithData(data).Render()
}

func executableStatus(report model.Report) string {
	if report.ExecutableOK {
		return report.ExecutablePath + " (ok)"
	}
	return report.ExecutablePath + " (missing or not executable)"
}

func archList(archs []model.Arch) string {
	if len(archs) == 0 {
		return "(unknown)"
	}
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}

// relaunch runs the bundle executable and captures its combined output.
// The executable is run directly (not via the launch services) so stdout
// and stderr are observable.
func relaunch(ctx context.Context, executable string) string {
	// #nosec G204 -- executable path comes from the inspected bundle
	cmd := exec.CommandContext(ctx, executable, "--verbose")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output) + fmt.Sprintf("\n(exited: %v)", err)
	}
	return string(output)
}

// filterErrorLines returns the lines of output matching any error keyword,
// case-insensitively.
func filterErrorLines(output string) []string {
	var matched []string
	for _, line := range strings.Split(output, "\n") {
		lower := strings.ToLower(line)
		for _, kw := range errorKeywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}

// showCrashReport prints the newest crash diagnostic.
func showCrashReport(report model.CrashReport) {
	pterm.DefaultSection.Printfln("%s (%s)", report.Path, report.ModTime.Format("2006-01-02 15:04:05"))

	raw, err := os.ReadFile(report.Path)
	if err != nil {
		pterm.Error.Printfln("could not read crash report: %v", err)
		return
	}
	pterm.Println(string(raw))
}
