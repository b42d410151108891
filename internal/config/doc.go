// Package config loads, normalizes, and validates m4bsplit configuration data.
//
// It supplies defaults that reproduce the plain "split every .m4b here with at
// most four workers" behaviour, expands user paths (including tilde
// shortcuts), and reads optional TOML files. The Config type centralizes the
// binaries, worker cap, extensions, journal location, and log settings so the
// CLI can resolve everything in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical extensions, and clear validation errors.
package config
