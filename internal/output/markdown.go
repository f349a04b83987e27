package output

import (
	"io"
	"strings"

	"github.com/dshills/lens/internal/lang"
	"github.com/dshills/lens/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	s := report.Summary
	total := totalFindings(s.Counts)

	ew.printf("## Lens Code Review\n\n")

	ew.printf("| Severity | Count |\n")
	ew.printf("|----------|-------|\n")
	ew.printf("| Critical | %d |\n", s.Counts.Critical)
	ew.printf("| High | %d |\n", s.Counts.High)
	ew.printf("| Medium | %d |\n", s.Counts.Medium)
	ew.printf("| Low | %d |\n", s.Counts.Low)
	ew.printf("| **Total** | **%d** |\n\n", total)

	ew.printf("Reviewed %d files in %d units: %d complete, %d partial, %d failed.\n\n",
		s.Files, s.Units, s.Statuses.Complete, s.Statuses.Partial, s.Statuses.Failed)

	if s.Statuses.Partial+s.Statuses.Failed > 0 {
		ew.printf("### Incomplete files\n\n")
		for _, p := range report.Paths() {
			fr := report.Files[p]
			if fr.Status == review.StatusComplete {
				continue
			}
			ew.printf("- `%s` **%s** (%d of %d units failed, %s): %s\n", p, fr.Status, fr.FailedUnits, fr.Units, fr.ErrorKind, fr.Error)
		}
		ew.printf("\n")
	}

	if total == 0 {
		ew.println("No issues found. :white_check_mark:")
		return ew.err
	}

	for _, p := range report.Paths() {
		fr := report.Files[p]
		if len(fr.Findings) == 0 {
			continue
		}

		ew.printf("<details>\n<summary><code>%s</code> (%d)</summary>\n\n", p, len(fr.Findings))
		for _, f := range fr.Findings {
			ew.printf("### %s %s\n\n", mdSeverityIcon(f.Severity), title(f))
			ew.printf("**`%s:%s`** | %s | %s\n\n", p, lineLabel(f), strings.ToUpper(f.Severity.String()), f.Category)
			if f.Title != "" {
				ew.printf("%s\n\n", f.Message)
			}

			if f.Suggestion != "" {
				ew.printf("**Suggestion:**\n\n")
				if looksLikeCode(f.Suggestion) {
					ew.printf("```%s\n%s\n```\n\n", lang.ForPath(p), f.Suggestion)
				} else {
					ew.printf("> %s\n\n", strings.ReplaceAll(f.Suggestion, "\n", "\n> "))
				}
			}
			ew.printf("---\n\n")
		}
		ew.printf("</details>\n\n")
	}

	ew.printf("*Reviewed in %dms (plan: %dms, LLM: %dms)*\n",
		report.Timing.TotalMs, report.Timing.PlanMs, report.Timing.LLMMs)

	return ew.err
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityCritical:
		return ":red_circle:"
	case review.SeverityHigh:
		return ":orange_circle:"
	case review.SeverityMedium:
		return ":yellow_circle:"
	case review.SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":white_circle:"
	}
}

func looksLikeCode(s string) bool {
	codeIndicators := []string{
		"func ", "if ", "for ", "return ", "var ", "const ",
		"def ", "class ", "import ", "from ",
		"{", "}", "=>", "->", ":=", "==",
		"()", "[];",
	}
	for _, indicator := range codeIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}
