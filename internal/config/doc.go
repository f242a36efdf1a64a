// Package config loads, normalizes, and validates trainloop configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and performs the fail-fast numeric checks
// the pipeline relies on: every count, timeout, and interval is validated
// before any subprocess or filesystem side effect happens.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths and clear validation errors.
package config
