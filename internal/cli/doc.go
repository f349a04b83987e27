// Package cli wires together the Cobra command tree for the lens binary.
//
// It defines the root command and its subcommands (review, plan, graph,
// config, cache, providers, version), binds flags to configuration keys,
// builds the review engine through a dig container and returns
// deterministic exit codes for CI gating.
package cli
