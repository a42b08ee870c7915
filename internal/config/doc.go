// Package config defines the settings of a synchronization pass and provides
// helpers to load, validate and save them in YAML format.
//
// The TRUD API key is deliberately not part of the YAML file: it comes from the
// environment, optionally seeded from a dotenv file.
package config
