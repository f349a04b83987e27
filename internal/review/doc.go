// Package review orchestrates dependency-aware code review.
//
// A run builds the import graph of the corpus, cuts every file into review
// units that fit a token budget (chunker.go), sends the units to an LLM
// provider through a bounded worker pool with retry and pacing
// (dispatcher.go), and merges the per-unit findings into one report per
// file (aggregate.go).
//
// Each unit carries a slice of its target file plus text from the files the
// target imports or is imported by. Findings come back with line numbers
// local to the slice; the aggregator maps them to file lines, merges
// near-duplicates from neighboring units and orders them by severity.
//
// Model output is validated strictly (parse.go). Output that fails
// validation gets exactly one repair prompt. Finding IDs are SHA-256
// prefixes of path, category, line and title so they are stable across
// runs.
//
// Rules packs (rules.go) allow callers to override finding severities, specify
// focus areas, and declare required checks that must appear in every review.
package review
