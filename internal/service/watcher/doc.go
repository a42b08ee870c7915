// Package watcher keeps the archive store current by running a synchronization
// pass on a crontab until the process is stopped.
package watcher
