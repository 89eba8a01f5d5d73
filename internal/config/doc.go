// Package config loads fget settings. Values are layered as defaults, then an optional
// YAML file, then FGET_* environment variables; the CLI applies its flags last.
package config
