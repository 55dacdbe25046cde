package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/pthtracker/appforge/internal/model"
)

// makeBundle creates an installed-looking bundle with a manifest and an
// executable whose content the lipo stub echoes back as its arch list.
func makeBundle(t *testing.T, name string, execMode os.FileMode) string {
	t.Helper()
	bundle := filepath.Join(t.TempDir(), name+".app")
	macos := filepath.Join(bundle, "Contents", "MacOS")
	require.NoError(t, os.MkdirAll(macos, 0755))

	manifest := map[string]interface{}{
		"CFBundleName":               name,
		"CFBundleExecutable":         name,
		"CFBundleIdentifier":         "org.example." + name,
		"CFBundleShortVersionString": "1.2.3",
	}
	raw, err := plist.Marshal(manifest, plist.XMLFormat)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "Contents", "Info.plist"), raw, 0644))

	require.NoError(t, os.WriteFile(filepath.Join(macos, name), []byte("x86_64 arm64"), execMode))
	return bundle
}

// installLipoStub provides a lipo that reports the executable's own content
// as its architecture list.
func installLipoStub(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\ncat \"$2\"; echo\n" // $1 is -archs
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lipo"), []byte(script), 0755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// pinCrashDir points the crash-report scan at a test directory.
func pinCrashDir(t *testing.T, dir string) {
	t.Helper()
	old := diagnosticReportsDir
	diagnosticReportsDir = func() string { return dir }
	t.Cleanup(func() { diagnosticReportsDir = old })
}

// TestInspect covers the healthy case: manifest identity, executable check,
// and the embedded architecture set.
func TestInspect(t *testing.T) {
	installLipoStub(t)
	pinCrashDir(t, t.TempDir())
	bundle := makeBundle(t, "Tracker", 0755)

	report, err := Inspect(context.Background(), bundle)
	require.NoError(t, err)

	assert.True(t, report.ExecutableOK)
	assert.Equal(t, "Tracker", report.Manifest.Name)
	assert.Equal(t, "org.example.Tracker", report.Manifest.Identifier)
	assert.Equal(t, "1.2.3", report.Manifest.Version)
	assert.True(t, model.ArchSetEqual(report.Archs,
		[]model.Arch{model.ArchX8664, model.ArchARM64}))
	assert.Empty(t, report.CrashReports)
}

// TestInspectExecutableNotExecutable verifies that a present file without
// an execute bit is reported as broken, not as an inspection error.
func TestInspectExecutableNotExecutable(t *testing.T) {
	pinCrashDir(t, t.TempDir())
	bundle := makeBundle(t, "Tracker", 0644)

	report, err := Inspect(context.Background(), bundle)
	require.NoError(t, err)
	assert.False(t, report.ExecutableOK)
}

func TestInspectMissingBundle(t *testing.T) {
	_, err := Inspect(context.Background(), filepath.Join(t.TempDir(), "Nope.app"))
	require.Error(t, err)
	assert.Equal(t, model.StageVerify, model.AsStageError(err).Stage)
}

// TestRecentCrashReports verifies the bounded look-back window and the
// newest-first ordering.
func TestRecentCrashReports(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("crash"), 0644))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	write("Tracker-today.ips", 1*time.Hour)
	write("Tracker-earlier.ips", 5*time.Hour)
	write("Tracker-lastweek.ips", 7*24*time.Hour)
	write("OtherApp-today.ips", 1*time.Hour)

	reports := recentCrashReports(dir, "Tracker", now)
	require.Len(t, reports, 2, "stale and foreign reports are excluded")

	assert.Contains(t, reports[0].Path, "Tracker-today")
	assert.Contains(t, reports[1].Path, "Tracker-earlier")
}

func TestFilterErrorLines(t *testing.T) {
	output := `starting up
loading config
ERROR: missing database
Traceback (most recent call last):
all good here
fatal: cannot continue`

	lines := filterErrorLines(output)
	require.Len(t, lines, 3)
	assert.Equal(t, "ERROR: missing database", lines[0])
	assert.Equal(t, "Traceback (most recent call last):", lines[1])
	assert.Equal(t, "fatal: cannot continue", lines[2])

	assert.Empty(t, filterErrorLines("clean run\nno problems"))
}
