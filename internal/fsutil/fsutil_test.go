package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCopyTree verifies that nested files, modes, and symlinks survive a
// tree copy. Symlink preservation matters because .app bundles contain
// relative links (framework Current → Versions/A).
func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "copy")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "Contents", "MacOS"), 0755))
	exe := filepath.Join(src, "Contents", "MacOS", "app")
	require.NoError(t, os.WriteFile(exe, []byte("binary"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Contents", "Info.plist"), []byte("<plist/>"), 0644))
	require.NoError(t, os.Symlink("MacOS/app", filepath.Join(src, "Contents", "launcher")))

	require.NoError(t, CopyTree(src, dst))

	copied := filepath.Join(dst, "Contents", "MacOS", "app")
	info, err := os.Stat(copied)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0111, "execute bit must survive the copy")

	data, err := os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	// The symlink must be recreated as a link, not dereferenced.
	target, err := os.Readlink(filepath.Join(dst, "Contents", "launcher"))
	require.NoError(t, err)
	assert.Equal(t, "MacOS/app", target)
}
