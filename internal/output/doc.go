// Package output formats review reports for display or machine consumption.
//
// Four formats are supported:
//   - text: human-readable terminal output, colored when writing to a TTY (default)
//   - json: the full structured report
//   - markdown: PR-comment-friendly, one collapsible section per file
//   - sarif: SARIF v2.1.0 for code-scanning uploads
//
// Use [GetWriter] to obtain a [Writer] for a format name, or [WriteReport]
// to select the destination as well. [Filter] narrows a report to findings
// at or above a severity threshold before it is written.
package output
