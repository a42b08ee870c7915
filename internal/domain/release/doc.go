// Package release models a catalog release and the per-file synchronization
// states a release goes through during one pass.
package release
