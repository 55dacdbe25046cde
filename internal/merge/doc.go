// Package merge fuses per-architecture bundles into a single universal
// bundle. The first artifact's tree is the structural template; only the
// primary executable is recombined, via lipo, into a fat binary carrying
// the union of the input architectures.
package merge
