// Package config loads and merges lens configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (LENS_PROVIDER, LENS_MAX_CONCURRENCY, LENS_RETRY_CEILING, etc.)
//  3. Repository file (<root>/.lens.yaml)
//  4. Global config file ($XDG_CONFIG_HOME/lens/config.json)
//  5. Built-in defaults
//
// Use [Load] to obtain a merged [Config] and [Config.Validate] before a run.
// API credentials are never part of a Config; callers pass them to the
// provider directly.
package config
