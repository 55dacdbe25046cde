// Package verify implements post-build sanity checks and an interactive
// diagnostic helper for an installed bundle. It reads the bundle manifest,
// probes the primary executable, and surfaces recent crash-diagnostic
// files. Verification never mutates the bundle.
package verify
