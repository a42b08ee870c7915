// Package catalog talks to the TRUD catalog API and returns release descriptors
// for a catalog item.
//
// FetchReleases reports typed errors; GetReleases is the lenient variant used by
// a synchronization pass, turning any failure into an empty, logged result.
package catalog
