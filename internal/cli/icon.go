package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthtracker/appforge/internal/icon"
)

// NewIconCommand creates the "icon" cobra command, which runs only the icon
// generation stage.
func NewIconCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "icon",
		Short: "Render the iconset and compile the icon container",
		Long: `Render every required icon resolution from the configured master asset
and compile the iconset into an .icns container under the work directory.

Example:
  appforge icon --verbose`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runIcon(cmd.Context())
		},
	}

	return cmd
}

func runIcon(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := icon.BuildIconContainer(ctx, cfg)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Printf("Icon generation skipped: %s\n", res.Reason)
		return nil
	}

	fmt.Printf("Icon container written: %s\n", res.IcnsPath)
	return nil
}
