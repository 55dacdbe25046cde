package icon

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthtracker/appforge/internal/config"
	"github.com/pthtracker/appforge/internal/model"
)

// fakeSips emulates `sips -z H W master --out dest`: it writes a marker
// file at the --out path.
const fakeSips = `#!/bin/sh
out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "--out" ]; then out="$a"; fi
  prev="$a"
done
echo sips > "$out"
`

// fakeIconutil emulates `iconutil -c icns -o dest dir`, refusing to compile
// an incomplete iconset just like the real tool.
const fakeIconutil = `#!/bin/sh
out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
dir="$a"
n=$(ls "$dir" | wc -l)
if [ "$n" -ne 10 ]; then
  echo "iconutil: incomplete iconset ($n entries)" >&2
  exit 1
fi
echo icns > "$out"
`

// stubDir creates a directory of named executable stubs and pins PATH to
// it alone, so the test controls exactly which tools "exist" on the host.
func stubDir(t *testing.T, stubs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, script := range stubs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0755))
	}
	t.Setenv("PATH", dir)
	return dir
}

func testConfig(t *testing.T, withMaster bool) config.BuildConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.WorkDir = filepath.Join(t.TempDir(), "build")
	cfg.IconPath = filepath.Join(t.TempDir(), "icon.png")
	if withMaster {
		require.NoError(t, os.WriteFile(cfg.IconPath, []byte("png-data"), 0644))
	}
	return cfg
}

// TestBuildIconContainer verifies the full conversion: ten iconset entries
// rendered and compiled into an icns container.
func TestBuildIconContainer(t *testing.T) {
	stubDir(t, map[string]string{"sips": fakeSips, "iconutil": fakeIconutil})
	cfg := testConfig(t, true)

	res, err := BuildIconContainer(context.Background(), cfg)
	require.NoError(t, err)
	require.False(t, res.Skipped)
	assert.FileExists(t, res.IcnsPath)

	entries, err := os.ReadDir(cfg.IconsetDir())
	require.NoError(t, err)
	assert.Len(t, entries, 10, "16/32/128/256/512 each with an @2x variant")

	// Spot-check the naming convention iconutil requires.
	assert.FileExists(t, filepath.Join(cfg.IconsetDir(), "icon_512x512@2x.png"))
}

// TestConverterPriority verifies that the vector renderer wins over the
// raster resizer when both are present.
func TestConverterPriority(t *testing.T) {
	// rsvg-convert takes the destination via -o.
	fakeRsvg := `#!/bin/sh
out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
echo rsvg > "$out"
`
	stubDir(t, map[string]string{
		"rsvg-convert": fakeRsvg,
		"sips":         fakeSips,
		"iconutil":     fakeIconutil,
	})
	cfg := testConfig(t, true)

	_, err := BuildIconContainer(context.Background(), cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.IconsetDir(), "icon_16x16.png"))
	require.NoError(t, err)
	assert.Equal(t, "rsvg\n", string(data), "the vector converter should have been chosen")
}

// TestSkippedWhenNoConverter pins the non-fatal contract: no converter on
// the host yields a skipped result and no error.
func TestSkippedWhenNoConverter(t *testing.T) {
	stubDir(t, map[string]string{"iconutil": fakeIconutil})
	cfg := testConfig(t, true)

	res, err := BuildIconContainer(context.Background(), cfg)
	require.NoError(t, err, "missing converters must never raise")
	assert.True(t, res.Skipped)
	assert.Contains(t, res.Reason, "no icon converter")
	assert.Contains(t, res.Reason, "rsvg-convert", "the reason should list the tools that were tried")
	assert.Empty(t, res.IcnsPath)
}

func TestSkippedWhenNoIconutil(t *testing.T) {
	stubDir(t, map[string]string{"sips": fakeSips})
	cfg := testConfig(t, true)

	res, err := BuildIconContainer(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Contains(t, res.Reason, "iconutil")
}

func TestSkippedWhenMasterMissing(t *testing.T) {
	stubDir(t, map[string]string{"sips": fakeSips, "iconutil": fakeIconutil})
	cfg := testConfig(t, false)

	res, err := BuildIconContainer(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	// Each skip cause names itself; a missing master must not be reported
	// as a converter problem.
	assert.Contains(t, res.Reason, "master icon asset")
	assert.Contains(t, res.Reason, cfg.IconPath)
}

// TestPartialConversionFatal verifies the other side of the contract: a
// converter that exists but fails one specific size is an IconError, since
// a partial iconset would ship a malformed container.
func TestPartialConversionFatal(t *testing.T) {
	// Fails only for the 256-pixel render (the -z height argument).
	failingSips := `#!/bin/sh
if [ "$2" = "256" ]; then
  echo "sips: cannot scale" >&2
  exit 1
fi
out=""; prev=""
for a in "$@"; do
  if [ "$prev" = "--out" ]; then out="$a"; fi
  prev="$a"
done
echo sips > "$out"
`
	stubDir(t, map[string]string{"sips": failingSips, "iconutil": fakeIconutil})
	cfg := testConfig(t, true)

	_, err := BuildIconContainer(context.Background(), cfg)
	require.Error(t, err)

	se := model.AsStageError(err)
	require.NotNil(t, se)
	assert.Equal(t, model.IconError, se.Kind)
	assert.Equal(t, model.StageIcon, se.Stage)
}
