// Package toolcache downloads and caches versioned external build tools.
//
// Tools are keyed by (name, version) and stored on local disk, so a tool is
// fetched at most once and reused by every later pipeline run. A cached
// entry is trusted if it exists and is executable; there is no network
// access on a cache hit. Failed downloads never leave partial files behind.
package toolcache
