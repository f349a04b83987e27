// Package redact removes secrets from source text before it is sent to any
// LLM provider.
//
// Detection uses regex heuristics covering common secret shapes: API keys,
// JWTs, private keys, AWS access key IDs and secret access keys, bearer
// tokens, database connection strings, and provider-specific tokens
// (Anthropic, OpenAI, GitHub, Slack). Matches are replaced within a line so
// line numbers in the redacted text still refer to the original file.
//
// Path-based redaction withholds whole files whose paths match configured
// glob patterns.
package redact
