package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthtracker/appforge/internal/model"
)

// writeDescriptor writes a descriptor file into a temp directory and
// returns its path.
func writeDescriptor(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultDescriptorName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadDefaults verifies that with no descriptor and no environment,
// Load produces the built-in defaults targeting the host architecture.
func TestLoadDefaults(t *testing.T) {
	// Run from an empty directory so a stray appforge.jsonc in the
	// repository root cannot leak into the test.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "PokerTH Tracker", cfg.AppName)
	assert.Equal(t, []model.Arch{model.HostArch()}, cfg.Archs)
	assert.Equal(t, "hdiutil", cfg.Packer)
	assert.Equal(t, "pyinstaller", cfg.BundlerBin)
}

// TestLoadDescriptor verifies descriptor overlay, including JSONC comments
// and trailing commas, which the jsonc preprocessor must tolerate.
func TestLoadDescriptor(t *testing.T) {
	path := writeDescriptor(t, `{
		// release build descriptor
		"appName": "Tracker",
		"bundleId": "org.example.tracker",
		"version": "2.1.0",
		"archs": ["x86_64", "arm64"],
		"packer": "create-dmg",
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Tracker", cfg.AppName)
	assert.Equal(t, "org.example.tracker", cfg.BundleID)
	assert.Equal(t, "2.1.0", cfg.Version)
	assert.Equal(t, []model.Arch{model.ArchX8664, model.ArchARM64}, cfg.Archs)
	assert.Equal(t, "create-dmg", cfg.Packer)

	// Fields absent from the descriptor keep their defaults.
	assert.Equal(t, "main.py", cfg.EntryPoint)
}

// TestLoadExplicitDescriptorMissing verifies that a descriptor named
// explicitly must exist, while the implicit default may be absent.
func TestLoadExplicitDescriptorMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.jsonc"))
	assert.Error(t, err)
}

// TestLoadEnvOverrides verifies that environment variables win over the
// descriptor file.
func TestLoadEnvOverrides(t *testing.T) {
	path := writeDescriptor(t, `{"archs": ["x86_64"], "distDir": "out"}`)

	t.Setenv(EnvArchs, "arm64,x86_64")
	t.Setenv(EnvDistDir, "release")
	t.Setenv(EnvBundler, "pyinstaller6")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []model.Arch{model.ArchARM64, model.ArchX8664}, cfg.Archs)
	assert.Equal(t, "release", cfg.DistDir)
	assert.Equal(t, "pyinstaller6", cfg.BundlerBin)
}

func TestLoadInvalidArchEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvArchs, "sparc")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.Version = "v1"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Packer = "zip"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Archs = []model.Arch{model.ArchARM64, model.ArchARM64}
	assert.Error(t, bad.Validate())
}

// TestImageName pins the deterministic artifact naming:
// <AppName>-<Version>-<ArchLabel>.dmg with whitespace stripped.
func TestImageName(t *testing.T) {
	cfg := Defaults()
	cfg.Version = "1.2.3"
	cfg.Archs = []model.Arch{model.ArchX8664, model.ArchARM64}
	assert.Equal(t, "PokerTHTracker-1.2.3-universal.dmg", cfg.ImageName())

	cfg.Archs = []model.Arch{model.ArchARM64}
	assert.Equal(t, "PokerTHTracker-1.2.3-arm64.dmg", cfg.ImageName())
}
