// Package icon converts a single master icon asset into the full iconset
// required by the platform and compiles it into an .icns container.
//
// Conversion tools are tried in priority order (vector renderer, raster
// resizer, thumbnail generator); the first one available is used for every
// required size. Icon generation is the only pipeline stage whose
// unavailability is non-fatal: with no converter on the host the stage is
// skipped and downstream stages fall back to the bundler's default icon.
package icon
