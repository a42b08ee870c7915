// Package store implements the local archive store:
//
//	downloads/<file>            raw downloaded files
//	extracted/<archive stem>/   extracted archive contents
//
// All access goes through an afero filesystem rooted at the store directory.
package store
