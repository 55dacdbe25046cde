// Package assemble packages a merged bundle into a distributable disk
// image: staging, transient volume allocation, content copy, optional
// Finder presentation, and compression into the final immutable image.
//
// The transient mount is the one exclusively-owned mutable resource of the
// pipeline. It is always detached before control returns to the caller,
// on success and on every error path, with a forced retry if the desktop
// shell still holds the volume.
package assemble
