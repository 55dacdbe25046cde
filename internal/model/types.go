package model

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Arch is a target CPU architecture, using the spelling understood by the
// platform toolchain (lipo, the bundler's --target-arch flag). Note that
// this differs from Go's GOARCH spelling for amd64; see HostArch.
type Arch string

const (
	// ArchX8664 is the 64-bit Intel architecture ("x86_64" in toolchain terms).
	ArchX8664 Arch = "x86_64"

	// ArchARM64 is the 64-bit ARM architecture used by Apple silicon.
	ArchARM64 Arch = "arm64"
)

// String returns the toolchain spelling of the architecture.
func (a Arch) String() string {
	return string(a)
}

// IsValid reports whether the Arch is one of the supported targets.
func (a Arch) IsValid() bool {
	switch a {
	case ArchX8664, ArchARM64:
		return true
	default:
		return false
	}
}

// ParseArch converts a string to an Arch. Common aliases ("amd64",
// "aarch64") are accepted and normalized to the toolchain spelling.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "amd64", "x64":
		return ArchX8664, nil
	case "arm64", "aarch64":
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("unsupported architecture %q (valid: x86_64, arm64)", s)
	}
}

// ParseArchList parses a comma-separated architecture list, as found in the
// APPFORGE_ARCHS environment variable. Duplicates are rejected because the
// merge step requires distinct architectures.
func ParseArchList(s string) ([]Arch, error) {
	parts := strings.Split(s, ",")
	seen := make(map[Arch]bool, len(parts))
	archs := make([]Arch, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		a, err := ParseArch(p)
		if err != nil {
			return nil, err
		}
		if seen[a] {
			return nil, fmt.Errorf("duplicate architecture %q in list", a)
		}
		seen[a] = true
		archs = append(archs, a)
	}
	if len(archs) == 0 {
		return nil, fmt.Errorf("architecture list %q is empty", s)
	}
	return archs, nil
}

// HostArch returns the architecture of the machine running the pipeline.
// Used as the default target when APPFORGE_ARCHS is unset.
func HostArch() Arch {
	if runtime.GOARCH == "arm64" {
		return ArchARM64
	}
	// Everything else is treated as Intel; 32-bit hosts are not supported
	// by the bundler anyway, so the compile stage will fail with a clear
	// error rather than this function guessing.
	return ArchX8664
}

// ArchLabel returns the label embedded in the package image file name:
// the single architecture name, or "universal" for a multi-arch build.
func ArchLabel(archs []Arch) string {
	if len(archs) == 1 {
		return archs[0].String()
	}
	return "universal"
}

// ArchSetEqual reports whether two architecture slices contain the same
// set of architectures, ignoring order. Used by the merge post-check that
// compares lipo's reported set against the requested set.
func ArchSetEqual(a, b []Arch) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i := range a {
		as[i] = a[i].String()
	}
	for i := range b {
		bs[i] = b[i].String()
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// Artifact is the output of one architecture build: a bundle tree rooted at
// <AppName>.app containing a single primary executable. An Artifact is owned
// by the compile stage until the merge stage consumes (and then deletes) it.
type Artifact struct {
	// Arch is the single architecture this bundle was compiled for.
	Arch Arch

	// BundlePath is the absolute path of the .app directory.
	BundlePath string

	// ExecutablePath is the absolute path of the primary executable inside
	// the bundle (Contents/MacOS/<AppName>).
	ExecutablePath string
}

// MergedArtifact is the result of fusing two or more per-arch Artifacts.
// Its executable carries the union of the input architecture sets; all
// non-executable resources come from the first (template) input.
type MergedArtifact struct {
	Archs          []Arch
	BundlePath     string
	ExecutablePath string
}

// PackageImage is the final distributable produced by the assemble stage.
// It is immutable once written and named deterministically from the app
// name, version, and architecture label.
type PackageImage struct {
	// Path is the absolute path of the image file in the dist directory.
	Path string

	// Size is the image file size in bytes. Always non-zero: a zero-length
	// image is rejected by the assemble stage before this value is set.
	Size int64

	// ArchLabel is the architecture label embedded in the file name.
	ArchLabel string
}

// CrashReport describes one crash-diagnostic file found by the verifier.
type CrashReport struct {
	Path    string
	ModTime time.Time
}

// BundleManifest holds the identification fields read from a bundle's
// Info.plist by the verifier.
type BundleManifest struct {
	Name       string `plist:"CFBundleName"`
	Identifier string `plist:"CFBundleIdentifier"`
	Version    string `plist:"CFBundleShortVersionString"`
	Executable string `plist:"CFBundleExecutable"`
}

// Report is the verifier's findings for an installed bundle. It is a plain
// data carrier; rendering (text, JSON, interactive) happens in the CLI layer.
type Report struct {
	BundlePath     string         `json:"bundlePath"`
	ExecutableOK   bool           `json:"executableOk"`
	ExecutablePath string         `json:"executablePath"`
	Archs          []Arch         `json:"archs,omitempty"`
	Manifest       BundleManifest `json:"manifest"`
	CrashReports   []CrashReport  `json:"crashReports,omitempty"`
}
