package toolcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pthtracker/appforge/internal/model"
)

// downloadTimeout bounds a single tool download. Build tools are small
// scripts or binaries; a minute is generous even on slow links.
const downloadTimeout = 60 * time.Second

// Tool identifies a versioned external tool and where to fetch it from.
type Tool struct {
	Name    string
	Version string
	URL     string
}

// CreateDMG is the pinned create-dmg release used when the create-dmg
// packer is selected. The version pin keeps package images reproducible
// across hosts.
var CreateDMG = Tool{
	Name:    "create-dmg",
	Version: "1.2.2",
	URL:     "https://raw.githubusercontent.com/create-dmg/create-dmg/v1.2.2/create-dmg",
}

// Cache fetches and caches external build tools under a local directory.
//
// Layout: <dir>/<name>-<version>/<name>. The version is part of the path,
// so upgrading a pin simply results in a new cache entry; stale versions
// are left in place and cost only disk space.
type Cache struct {
	dir    string
	client *http.Client

	// smokeArgs are passed to a freshly downloaded tool to prove it is a
	// runnable executable and not an HTML error page. Defaults to
	// {"--version"}, which every tool we pin supports.
	smokeArgs []string
}

// New creates a Cache rooted at dir. The directory is created lazily on
// the first download.
func New(dir string) *Cache {
	return &Cache{
		dir:       dir,
		client:    &http.Client{Timeout: downloadTimeout},
		smokeArgs: []string{"--version"},
	}
}

// Path returns the cache location for a (name, version) pair without
// checking whether it exists.
func (c *Cache) Path(name, version string) string {
	return filepath.Join(c.dir, name+"-"+version, name)
}

// Acquire returns the path of an executable tool matching (name, version).
//
// On a cache hit (file exists and has an execute bit) the cached path is
// returned immediately with no network access. On a miss the tool is
// downloaded from url, marked executable, and smoke-tested by invoking it
// with a trivial subcommand. Any failure removes the partial or invalid
// file and returns a FetchError.
func (c *Cache) Acquire(ctx context.Context, name, version, url string) (string, error) {
	path := c.Path(name, version)

	if isExecutable(path) {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", model.WrapStageError(model.StagePrereq, model.FetchError,
			fmt.Sprintf("creating tool cache directory for %s", name),
			"check permissions on the cache directory", err)
	}

	if err := c.download(ctx, url, path); err != nil {
		return "", err
	}

	// Smoke test: a trivial invocation proves the file is a real
	// executable rather than, say, a 404 page saved to disk.
	if err := c.smokeTest(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", model.WrapStageError(model.StagePrereq, model.FetchError,
			fmt.Sprintf("downloaded %s %s is not a working executable", name, version),
			"verify the tool URL and version pin", err)
	}

	return path, nil
}

// AcquireTool is Acquire for a pinned Tool descriptor.
func (c *Cache) AcquireTool(ctx context.Context, t Tool) (string, error) {
	return c.Acquire(ctx, t.Name, t.Version, t.URL)
}

// download streams the URL body to a .partial file and renames it into
// place only after a complete, successful transfer. The rename is the
// commit point: readers never observe a half-written tool.
func (c *Cache) download(ctx context.Context, url, dest string) error {
	partial := dest + ".partial"

	err := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s", resp.Status)
		}

		f, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}()
	if err != nil {
		_ = os.Remove(partial)
		return model.WrapStageError(model.StagePrereq, model.FetchError,
			fmt.Sprintf("downloading %s", url),
			"check network connectivity and the tool URL", err)
	}

	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return model.WrapStageError(model.StagePrereq, model.FetchError,
			"committing downloaded tool to cache", "", err)
	}
	return nil
}

// smokeTest runs the tool with its trivial subcommand, discarding output.
func (c *Cache) smokeTest(ctx context.Context, path string) error {
	// #nosec G204 -- path is constructed from the cache layout, not user input
	cmd := exec.CommandContext(ctx, path, c.smokeArgs...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// isExecutable reports whether path is a regular file with any execute bit.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
