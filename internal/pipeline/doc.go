// Package pipeline sequences the build stages into the full packaging run:
// prerequisite checks, clean, per-architecture builds, universal merge,
// icon generation, image assembly, and verification.
//
// Stages run synchronously, one at a time; the first fatal failure moves
// the driver to the Failed state and no further stages execute. There is
// no resume: a retried run starts from Init, which is safe because the
// clean stage removes all prior output.
package pipeline
