// Package logger provides a small wrapper around zap to offer:
//   - a sugared logger with the console encoder used across the tool,
//   - an optional daily log file (<dir>/<tool>_<YYYYMMDD>.log) next to the console output,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and convenience functions (Infof, ErrorKV, etc.).
//
// The logger is built once by the entry point and travels in the context.
// There is no package-level mutable logger: a context without one logs nowhere.
package logger
