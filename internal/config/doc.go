// Package config loads, normalizes, and validates iomanager configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SHOTGRID_SCRIPT_KEY and DEADLINE_URL. The Config type centralizes every knob
// the CLI and API server need, so scan roots, the shared plate drive, farm
// submission defaults and render settings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
