// Package config loads, normalizes, and validates damo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the DAMO_LOG_LEVEL environment
// fallback. The Config type centralizes the DAMON interface locations, the
// record output defaults, and logging settings so every subcommand sees the
// same sanitized values.
//
// Subcommands load configuration lazily; "damo version" never touches it.
package config
