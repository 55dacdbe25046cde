package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tidwall/jsonc"

	"github.com/pthtracker/appforge/internal/model"
)

// DefaultDescriptorName is the descriptor file looked up in the working
// directory when no --config flag is given. JSONC so the descriptor can
// carry comments, same format family as tsconfig.json.
const DefaultDescriptorName = "appforge.jsonc"

// Environment variable names recognized by Load. APPFORGE_ARCHS overrides
// the architecture autodetection; the rest relocate pipeline directories.
const (
	EnvArchs    = "APPFORGE_ARCHS"
	EnvDistDir  = "APPFORGE_DIST_DIR"
	EnvWorkDir  = "APPFORGE_WORK_DIR"
	EnvCacheDir = "APPFORGE_CACHE_DIR"
	EnvBundler  = "APPFORGE_BUNDLER"
)

// BuildConfig is the immutable configuration record shared by all pipeline
// stages. Created once by Load; read-only thereafter.
type BuildConfig struct {
	// AppName is the display name, used for the .app directory, the volume
	// name, and the image file name.
	AppName string

	// BundleID is the reverse-DNS bundle identifier written to Info.plist.
	BundleID string

	// Version is the semantic version embedded in the image file name and
	// the bundle manifest.
	Version string

	// Archs lists the target architectures in build order. The first entry
	// is the structural template for the universal merge.
	Archs []model.Arch

	// MinOSVersion is the minimum supported OS version (LSMinimumSystemVersion).
	MinOSVersion string

	// EntryPoint is the application entry-point file handed to the bundler.
	EntryPoint string

	// SourceDir is the application source tree root.
	SourceDir string

	// IconPath is the master icon asset converted by the icon pipeline.
	IconPath string

	// DistDir receives the final package image.
	DistDir string

	// WorkDir holds all intermediate state: per-arch build output, staging
	// areas, generated icons. Removed by the clean stage.
	WorkDir string

	// CacheDir holds the downloaded external tools. It survives the clean
	// stage so cached tools are reused across runs.
	CacheDir string

	// BundlerBin is the application bundler executable (default pyinstaller).
	BundlerBin string

	// Packer selects the image assembly strategy: "hdiutil" (default,
	// manual staging/attach/convert flow) or "create-dmg" (fetched through
	// the tool cache).
	Packer string

	// PresentationSpec is an optional YAML file describing the Finder
	// window layout applied to the mounted image. Empty disables the
	// presentation step.
	PresentationSpec string
}

// descriptor mirrors the JSONC descriptor file. Field names follow the
// camelCase convention of the JSON config-file ecosystem.
type descriptor struct {
	AppName          string   `json:"appName"`
	BundleID         string   `json:"bundleId"`
	Version          string   `json:"version"`
	Archs            []string `json:"archs"`
	MinOSVersion     string   `json:"minOsVersion"`
	EntryPoint       string   `json:"entryPoint"`
	SourceDir        string   `json:"sourceDir"`
	IconPath         string   `json:"icon"`
	DistDir          string   `json:"distDir"`
	WorkDir          string   `json:"workDir"`
	CacheDir         string   `json:"cacheDir"`
	BundlerBin       string   `json:"bundler"`
	Packer           string   `json:"packer"`
	PresentationSpec string   `json:"presentation"`
}

// versionRegex accepts plain semantic versions, with an optional pre-release
// suffix (1.2.3, 0.9.0-rc1).
var versionRegex = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// Defaults returns the built-in configuration for the PokerTH Tracker app,
// targeting the host architecture only. Every field can be overridden by the
// descriptor file or environment.
func Defaults() BuildConfig {
	return BuildConfig{
		AppName:      "PokerTH Tracker",
		BundleID:     "org.pthtracker.tracker",
		Version:      "1.0.0",
		Archs:        []model.Arch{model.HostArch()},
		MinOSVersion: "11.0",
		EntryPoint:   "main.py",
		SourceDir:    "src",
		IconPath:     filepath.Join("assets", "icon.png"),
		DistDir:      "dist",
		WorkDir:      "build",
		CacheDir:     ".appforge-cache",
		BundlerBin:   "pyinstaller",
		Packer:       "hdiutil",
	}
}

// Load resolves the BuildConfig from defaults, an optional descriptor file,
// and environment overrides.
//
// descriptorPath may be empty, in which case appforge.jsonc in the current
// directory is used if present. A missing default descriptor is not an
// error; an explicitly named descriptor that does not exist is.
func Load(descriptorPath string) (BuildConfig, error) {
	cfg := Defaults()

	explicit := descriptorPath != ""
	if !explicit {
		descriptorPath = DefaultDescriptorName
	}

	raw, err := os.ReadFile(descriptorPath)
	switch {
	case err == nil:
		if err := applyDescriptor(&cfg, raw); err != nil {
			return BuildConfig{}, fmt.Errorf("parsing %s: %w", descriptorPath, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No descriptor in the working directory; defaults apply.
	default:
		return BuildConfig{}, fmt.Errorf("reading descriptor: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return BuildConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return BuildConfig{}, err
	}
	return cfg, nil
}

// applyDescriptor overlays descriptor file values onto cfg. Empty descriptor
// fields leave the existing value untouched.
func applyDescriptor(cfg *BuildConfig, raw []byte) error {
	var d descriptor
	// jsonc.ToJSON strips comments and trailing commas, producing strict
	// JSON for the standard decoder.
	if err := json.Unmarshal(jsonc.ToJSON(raw), &d); err != nil {
		return err
	}

	setIfNotEmpty(&cfg.AppName, d.AppName)
	setIfNotEmpty(&cfg.BundleID, d.BundleID)
	setIfNotEmpty(&cfg.Version, d.Version)
	setIfNotEmpty(&cfg.MinOSVersion, d.MinOSVersion)
	setIfNotEmpty(&cfg.EntryPoint, d.EntryPoint)
	setIfNotEmpty(&cfg.SourceDir, d.SourceDir)
	setIfNotEmpty(&cfg.IconPath, d.IconPath)
	setIfNotEmpty(&cfg.DistDir, d.DistDir)
	setIfNotEmpty(&cfg.WorkDir, d.WorkDir)
	setIfNotEmpty(&cfg.CacheDir, d.CacheDir)
	setIfNotEmpty(&cfg.BundlerBin, d.BundlerBin)
	setIfNotEmpty(&cfg.Packer, d.Packer)
	setIfNotEmpty(&cfg.PresentationSpec, d.PresentationSpec)

	if len(d.Archs) > 0 {
		archs := make([]model.Arch, 0, len(d.Archs))
		for _, s := range d.Archs {
			a, err := model.ParseArch(s)
			if err != nil {
				return err
			}
			archs = append(archs, a)
		}
		cfg.Archs = archs
	}
	return nil
}

// applyEnv overlays environment variable overrides onto cfg.
func applyEnv(cfg *BuildConfig) error {
	if v := os.Getenv(EnvArchs); v != "" {
		archs, err := model.ParseArchList(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvArchs, err)
		}
		cfg.Archs = archs
	}
	setIfNotEmpty(&cfg.DistDir, os.Getenv(EnvDistDir))
	setIfNotEmpty(&cfg.WorkDir, os.Getenv(EnvWorkDir))
	setIfNotEmpty(&cfg.CacheDir, os.Getenv(EnvCacheDir))
	setIfNotEmpty(&cfg.BundlerBin, os.Getenv(EnvBundler))
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks the resolved configuration for internal consistency.
func (c BuildConfig) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("appName must not be empty")
	}
	if !versionRegex.MatchString(c.Version) {
		return fmt.Errorf("invalid version %q: expected semantic version (e.g. 1.2.3)", c.Version)
	}
	if len(c.Archs) == 0 {
		return fmt.Errorf("at least one target architecture is required")
	}
	seen := make(map[model.Arch]bool, len(c.Archs))
	for _, a := range c.Archs {
		if !a.IsValid() {
			return fmt.Errorf("unsupported architecture %q", a)
		}
		if seen[a] {
			return fmt.Errorf("duplicate architecture %q", a)
		}
		seen[a] = true
	}
	switch c.Packer {
	case "hdiutil", "create-dmg":
	default:
		return fmt.Errorf("invalid packer %q (valid: hdiutil, create-dmg)", c.Packer)
	}
	return nil
}

// BundleName returns the .app directory name for the configured app.
func (c BuildConfig) BundleName() string {
	return c.AppName + ".app"
}

// ImageNameFor returns the deterministic package image file name for a
// given architecture label: <AppName>-<Version>-<label>.dmg, with spaces in
// the app name stripped so the artifact is shell-friendly.
func (c BuildConfig) ImageNameFor(label string) string {
	name := regexp.MustCompile(`\s+`).ReplaceAllString(c.AppName, "")
	return fmt.Sprintf("%s-%s-%s.dmg", name, c.Version, label)
}

// ImageName returns the image file name for the configured architecture
// set. The assemble stage names the actual artifact after the architectures
// embedded in the bundle it packages; this variant serves callers that only
// have the configuration, such as the clean stage's stale-image removal.
func (c BuildConfig) ImageName() string {
	return c.ImageNameFor(model.ArchLabel(c.Archs))
}

// ArchBuildDir returns the per-architecture bundler output directory.
func (c BuildConfig) ArchBuildDir(arch model.Arch) string {
	return filepath.Join(c.WorkDir, "bundles", arch.String())
}

// MergedDir returns the directory holding the merged universal bundle.
func (c BuildConfig) MergedDir() string {
	return filepath.Join(c.WorkDir, "merged")
}

// StagingDir returns the image staging area directory.
func (c BuildConfig) StagingDir() string {
	return filepath.Join(c.WorkDir, "staging")
}

// ToolCacheDir returns the versioned external tool cache directory. The
// cache deliberately lives outside WorkDir so the clean stage does not
// force tools to be re-downloaded every run.
func (c BuildConfig) ToolCacheDir() string {
	return filepath.Join(c.CacheDir, "tools")
}

// IconsetDir returns the scratch directory for generated icon rasters.
func (c BuildConfig) IconsetDir() string {
	return filepath.Join(c.WorkDir, "icon", "AppIcon.iconset")
}
