package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/model"
	"github.com/pthtracker/appforge/internal/verify"
)

// verifyFlags holds the flag values for the verify command.
type verifyFlags struct {
	interactive bool // --interactive: launch the diagnostic menu
}

// NewVerifyCommand creates the "verify" cobra command, which inspects an
// installed bundle and optionally opens the interactive diagnostic session.
func NewVerifyCommand() *cobra.Command {
	flags := &verifyFlags{}

	cmd := &cobra.Command{
		Use:   "verify <bundle-path>",
		Short: "Inspect an installed application bundle",
		Long: `Inspect an installed .app bundle: manifest identity, executable health,
embedded architectures, and recent crash diagnostics.

With --interactive, open a menu for relaunching the app with captured
output and browsing crash reports.

Examples:
  appforge verify /Applications/PokerTH\ Tracker.app
  appforge verify --interactive /Applications/PokerTH\ Tracker.app`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "Open the interactive diagnostic session")

	return cmd
}

func runVerify(ctx context.Context, bundlePath string, flags *verifyFlags) error {
	if flags.interactive {
		return verify.RunDoctor(ctx, bundlePath)
	}

	report, err := verify.Inspect(ctx, bundlePath)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

// printReport renders the inspection findings in text or JSON format.
func printReport(report model.Report) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Bundle:        %s\n", report.BundlePath)
	fmt.Printf("  Name:        %s\n", report.Manifest.Name)
	fmt.Printf("  Identifier:  %s\n", report.Manifest.Identifier)
	fmt.Printf("  Version:     %s\n", report.Manifest.Version)

	if report.ExecutableOK {
		fmt.Printf("  Executable:  %s (ok)\n", report.ExecutablePath)
	} else {
		fmt.Printf("  Executable:  %s (missing or not executable)\n", report.ExecutablePath)
	}

	if len(report.Archs) > 0 {
		fmt.Printf("  Archs:       %s\n", model.ArchLabel(report.Archs))
	}
	fmt.Printf("  Crashes:     %d recent report(s)\n", len(report.CrashReports))
	for _, c := range report.CrashReports {
		fmt.Printf("    %s (%s)\n", c.Path, c.ModTime.Format("2006-01-02 15:04:05"))
	}
}
