// Package scheduling repeats synchronization passes on a crontab.
package scheduling
