package assemble

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// PresentationSpec declares how the mounted volume should look in Finder:
// window geometry, icon size, and per-item icon positions. It is loaded
// from a YAML file and rendered into an AppleScript run against the Finder.
//
// Finder scripting is treated as an opaque collaborator: the spec describes
// intent, the generated script is the wire format, and a failure at this
// step is cosmetic and never fatal to the pipeline.
type PresentationSpec struct {
	Window struct {
		X      int `yaml:"x"`
		Y      int `yaml:"y"`
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"window"`

	// IconSize is the Finder icon size in points. Zero keeps Finder's default.
	IconSize int `yaml:"iconSize"`

	// Icons maps item names on the volume (the .app, the Applications
	// symlink) to their window positions.
	Icons map[string]IconPosition `yaml:"icons"`
}

// IconPosition is an icon's coordinate within the Finder window.
type IconPosition struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// LoadPresentationSpec parses a presentation YAML file.
func LoadPresentationSpec(path string) (PresentationSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PresentationSpec{}, fmt.Errorf("reading presentation spec: %w", err)
	}

	var spec PresentationSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return PresentationSpec{}, fmt.Errorf("parsing presentation spec: %w", err)
	}
	return spec, nil
}

// Script renders the AppleScript applied to the named volume. Icon items
// are emitted in sorted order so the script is deterministic for a given
// spec (map iteration order is not).
func (s PresentationSpec) Script(volumeName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "tell application \"Finder\"\n")
	fmt.Fprintf(&b, "\ttell disk %q\n", volumeName)
	fmt.Fprintf(&b, "\t\topen\n")
	fmt.Fprintf(&b, "\t\tset current view of container window to icon view\n")
	fmt.Fprintf(&b, "\t\tset toolbar visible of container window to false\n")
	fmt.Fprintf(&b, "\t\tset statusbar visible of container window to false\n")

	if s.Window.Width > 0 && s.Window.Height > 0 {
		fmt.Fprintf(&b, "\t\tset the bounds of container window to {%d, %d, %d, %d}\n",
			s.Window.X, s.Window.Y, s.Window.X+s.Window.Width, s.Window.Y+s.Window.Height)
	}
	if s.IconSize > 0 {
		fmt.Fprintf(&b, "\t\tset icon size of the icon view options of container window to %d\n", s.IconSize)
	}

	names := make([]string, 0, len(s.Icons))
	for name := range s.Icons {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pos := s.Icons[name]
		fmt.Fprintf(&b, "\t\tset position of item %q of container window to {%d, %d}\n",
			name, pos.X, pos.Y)
	}

	fmt.Fprintf(&b, "\t\tupdate without registering applications\n")
	fmt.Fprintf(&b, "\t\tclose\n")
	fmt.Fprintf(&b, "\tend tell\n")
	fmt.Fprintf(&b, "end tell\n")

	return b.String()
}

// applyPresentation loads the spec and runs the rendered script through
// osascript against the mounted volume. The script is fed on stdin to
// avoid argument quoting issues.
func applyPresentation(ctx context.Context, specPath, volumeName string) error {
	spec, err := LoadPresentationSpec(specPath)
	if err != nil {
		return err
	}

	// #nosec G204 -- fixed tool, script assembled from the spec file
	cmd := exec.CommandContext(ctx, "osascript", "-")
	cmd.Stdin = strings.NewReader(spec.Script(volumeName))

	var stderr strings.Builder
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if s := strings.TrimSpace(stderr.String()); s != "" {
			return fmt.Errorf("osascript: %s: %w", s, err)
		}
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}
