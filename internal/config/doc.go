// Package config loads the immutable build configuration for a pipeline run.
//
// Configuration is resolved exactly once, at pipeline start, from three
// layers (later layers override earlier ones):
//
//  1. Built-in defaults derived from the host platform
//  2. An optional JSONC descriptor file (appforge.jsonc)
//  3. Environment variables (APPFORGE_ARCHS, APPFORGE_DIST_DIR, ...)
//
// The resulting BuildConfig value is passed into every stage by value and
// never mutated; stages must not read ambient environment state beyond this
// initial load.
package config
