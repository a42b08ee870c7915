// Package downloader synchronizes catalog releases into the local archive store.
//
// A pass fetches the release list, checks every file against its local copy
// with a HEAD probe, downloads what is missing or stale, swaps the new file in
// atomically and unpacks the primary archive. A run marker keeps two passes
// from sharing a data directory.
package downloader
