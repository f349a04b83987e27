// Lens is a CLI for reviewing whole files with LLM providers, each file sent
// together with the files it depends on and the files that depend on it.
//
// Large files are split into token-bounded units at declaration boundaries,
// requests run on a bounded worker pool with retries, and findings are
// merged per file with near-duplicates removed. Exit codes are
// deterministic for CI gating.
//
// Usage:
//
//	lens review                        # review every tracked source file
//	lens review internal/store         # review files below a directory
//	lens review --fail-on high         # exit 1 on high or critical findings
//	lens plan                          # show review units without API calls
//	lens graph                         # print the dependency graph
//	lens config init --repo            # write .lens.yaml
package main
