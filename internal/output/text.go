package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/lens/internal/review"
)

// TextWriter outputs a human-readable text report. Colors are applied only
// when w is a terminal.
type TextWriter struct{}

type textStyles struct {
	severity map[review.Severity]lipgloss.Style
	path     lipgloss.Style
	faint    lipgloss.Style
	failed   lipgloss.Style
}

func newTextStyles(w io.Writer) textStyles {
	r := lipgloss.NewRenderer(w)
	return textStyles{
		severity: map[review.Severity]lipgloss.Style{
			review.SeverityCritical: r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#FF5F87"}),
			review.SeverityHigh:     r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF8700"}),
			review.SeverityMedium:   r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9E6A03", Dark: "#FFD75F"}),
			review.SeverityLow:      r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#5FAFFF"}),
		},
		path:   r.NewStyle().Bold(true),
		faint:  r.NewStyle().Faint(true),
		failed: r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF5F5F"}),
	}
}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	st := newTextStyles(w)
	rule := strings.Repeat("─", 60)

	s := report.Summary
	total := totalFindings(s.Counts)
	ew.printf("Lens Code Review (%s/%s)\n", report.Provider, report.Model)
	if report.Repo.Root != "" {
		ew.printf("Repository: %s", report.Repo.Root)
		if report.Repo.Branch != "" {
			ew.printf(" (branch: %s)", report.Repo.Branch)
		}
		ew.println("")
	}
	ew.println(rule)
	ew.printf("Files: %d (%d complete, %d partial, %d failed) | Units: %d\n",
		s.Files, s.Statuses.Complete, s.Statuses.Partial, s.Statuses.Failed, s.Units)
	ew.printf("Findings: %d total", total)
	if total > 0 {
		ew.printf(" (%d critical, %d high, %d medium, %d low)",
			s.Counts.Critical, s.Counts.High, s.Counts.Medium, s.Counts.Low)
	}
	ew.println("")
	ew.println(rule)

	for _, p := range report.Paths() {
		fr := report.Files[p]
		if len(fr.Findings) == 0 && fr.Status == review.StatusComplete && fr.Note == "" {
			continue
		}

		ew.printf("\n%s  %s\n", st.path.Render(p), st.faint.Render(string(fr.Status)))
		if fr.Note != "" {
			ew.printf("  %s\n", st.faint.Render(fr.Note))
		}
		if fr.Error != "" {
			ew.printf("  %s\n", st.failed.Render(fmt.Sprintf("%d of %d units failed (%s): %s", fr.FailedUnits, fr.Units, fr.ErrorKind, fr.Error)))
		}

		for _, f := range fr.Findings {
			label := st.severity[f.Severity].Render(fmt.Sprintf("%-8s", strings.ToUpper(f.Severity.String())))
			ew.printf("\n  %s %s  %s\n", label, lineLabel(f), title(f))
			meta := fmt.Sprintf("Category: %s", f.Category)
			if f.Confidence > 0 {
				meta += fmt.Sprintf(" | Confidence: %.0f%%", f.Confidence*100)
			}
			ew.printf("  %s\n", st.faint.Render(meta))

			if f.Title != "" {
				for _, line := range wrapText(f.Message, 70) {
					ew.printf("    %s\n", line)
				}
			}
			if f.Suggestion != "" {
				ew.println("  Suggestion:")
				for _, line := range wrapText(f.Suggestion, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	if total == 0 && s.Statuses.Failed == 0 && s.Statuses.Partial == 0 {
		ew.println("\nNo issues found.")
	}

	ew.printf("\n%s\n", rule)
	ew.printf("Completed in %dms (plan: %dms, LLM: %dms) | %d requests, %d tokens\n",
		report.Timing.TotalMs, report.Timing.PlanMs, report.Timing.LLMMs, s.Attempts, s.TokensUsed)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
