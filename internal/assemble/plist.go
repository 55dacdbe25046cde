package assemble

import (
	"fmt"
	"os"
	"path/filepath"

	"howett.net/plist"

	"github.com/pthtracker/appforge/internal/config"
)

// writeManifest writes the staged bundle's Info.plist. If the bundler
// already produced one its unknown keys are preserved; the identity fields
// (identifier, version, minimum OS) are always taken from the build config
// so the descriptor is the single source of truth for bundle metadata.
func writeManifest(bundlePath string, cfg config.BuildConfig, hasIcon bool) error {
	manifestPath := filepath.Join(bundlePath, "Contents", "Info.plist")

	entries := map[string]interface{}{}
	if raw, err := os.ReadFile(manifestPath); err == nil {
		if _, err := plist.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("parsing existing Info.plist: %w", err)
		}
	}

	entries["CFBundleName"] = cfg.AppName
	entries["CFBundleDisplayName"] = cfg.AppName
	entries["CFBundleExecutable"] = cfg.AppName
	entries["CFBundleIdentifier"] = cfg.BundleID
	entries["CFBundleShortVersionString"] = cfg.Version
	entries["CFBundleVersion"] = cfg.Version
	entries["CFBundlePackageType"] = "APPL"
	entries["LSMinimumSystemVersion"] = cfg.MinOSVersion
	entries["NSHighResolutionCapable"] = true
	if hasIcon {
		entries["CFBundleIconFile"] = "AppIcon"
	}

	raw, err := plist.MarshalIndent(entries, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("encoding Info.plist: %w", err)
	}
	return os.WriteFile(manifestPath, raw, 0644)
}
