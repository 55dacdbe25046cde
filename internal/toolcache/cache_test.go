package toolcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthtracker/appforge/internal/model"
)

// toolScript is a minimal executable that survives the --version smoke test.
const toolScript = "#!/bin/sh\necho fake-tool 1.0\n"

// newToolServer serves toolScript and counts how many fetches were made.
func newToolServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(toolScript))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestAcquireFetchesOnce verifies the idempotence contract: two Acquire
// calls for the same (name, version) perform at most one network fetch and
// return the same cached path.
func TestAcquireFetchesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := newToolServer(t, &hits)
	cache := New(t.TempDir())

	first, err := cache.Acquire(context.Background(), "fake-tool", "1.0", srv.URL)
	require.NoError(t, err)
	assert.FileExists(t, first)

	second, err := cache.Acquire(context.Background(), "fake-tool", "1.0", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "second acquire must not hit the network")
}

// TestAcquireDistinctVersions verifies that the version participates in the
// cache key: a new version pin triggers a new fetch into a separate entry.
func TestAcquireDistinctVersions(t *testing.T) {
	var hits atomic.Int32
	srv := newToolServer(t, &hits)
	cache := New(t.TempDir())

	v1, err := cache.Acquire(context.Background(), "fake-tool", "1.0", srv.URL)
	require.NoError(t, err)
	v2, err := cache.Acquire(context.Background(), "fake-tool", "2.0", srv.URL)
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
	assert.Equal(t, int32(2), hits.Load())
}

// TestAcquireExecutableBit verifies the cached tool is marked executable.
func TestAcquireExecutableBit(t *testing.T) {
	var hits atomic.Int32
	srv := newToolServer(t, &hits)
	cache := New(t.TempDir())

	path, err := cache.Acquire(context.Background(), "fake-tool", "1.0", srv.URL)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0111)
}

// TestAcquireHTTPError verifies that a failed transfer yields a FetchError
// and leaves no partial file in the cache.
func TestAcquireHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cache := New(dir)

	_, err := cache.Acquire(context.Background(), "fake-tool", "1.0", srv.URL)
	require.Error(t, err)

	se := model.AsStageError(err)
	require.NotNil(t, se)
	assert.Equal(t, model.FetchError, se.Kind)

	assert.NoFileExists(t, cache.Path("fake-tool", "1.0"))
	assert.NoFileExists(t, cache.Path("fake-tool", "1.0")+".partial")
}

// TestAcquireSmokeTestFailure verifies that a download which is not a
// runnable executable (an HTML error page, say) is rejected and removed,
// so the next Acquire retries the fetch.
func TestAcquireSmokeTestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 OK, but the body is not an executable script.
		_, _ = w.Write([]byte("<html>not a tool</html>"))
	}))
	defer srv.Close()

	cache := New(t.TempDir())

	_, err := cache.Acquire(context.Background(), "fake-tool", "1.0", srv.URL)
	require.Error(t, err)

	se := model.AsStageError(err)
	require.NotNil(t, se)
	assert.Equal(t, model.FetchError, se.Kind)
	assert.NoFileExists(t, cache.Path("fake-tool", "1.0"))
}
