// Package cache provides a file-based cache for LLM review responses.
//
// Entries are keyed by a SHA-256 hash of the provider name, model, response
// token cap and both prompts. Each entry stores the raw response with a
// creation timestamp and a TTL in seconds. Expired entries are skipped on
// read and counted by GetStats.
//
// Reviewer wraps a providers.Reviewer so repeated runs over unchanged units
// skip the network. The default directory is $XDG_CACHE_HOME/lens (or the
// OS-appropriate equivalent). Prompts have been through secret redaction
// before they reach the cache.
package cache
