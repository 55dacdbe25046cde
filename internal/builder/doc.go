// Package builder compiles the application into a per-architecture bundle
// by invoking the external bundler (PyInstaller by default).
//
// Each architecture build is independent and produces a bundle tree under
// its own output directory. Builds for multiple architectures run through a
// bounded worker pool; the artifact order always follows the configured
// architecture order, not completion order, because the first artifact is
// the structural template for the universal merge.
package builder
