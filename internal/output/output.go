package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/lens/internal/review"
)

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, report *review.Report) error
}

// Formats lists the supported output formats.
var Formats = []string{"text", "json", "markdown", "sarif"}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteReport writes the report to outPath, or to stdout when outPath is
// empty.
func WriteReport(report *review.Report, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	if outPath == "" {
		return writer.Write(os.Stdout, report)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writer.Write(f, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Filter returns a copy of report without findings below threshold. The
// summary is recomputed; run counters are carried over.
func Filter(report *review.Report, threshold string) *review.Report {
	out := *report
	out.Files = make(map[string]review.FileReport, len(report.Files))
	for p, fr := range report.Files {
		kept := make([]review.Finding, 0, len(fr.Findings))
		for _, f := range fr.Findings {
			if review.MeetsThreshold(f.Severity, threshold) {
				kept = append(kept, f)
			}
		}
		fr.Findings = kept
		out.Files[p] = fr
	}

	summary := review.ComputeSummary(out.Files)
	summary.TokensUsed = report.Summary.TokensUsed
	summary.Attempts = report.Summary.Attempts
	summary.PeakInFlight = report.Summary.PeakInFlight
	out.Summary = summary
	return &out
}

// ShouldFail reports whether any finding in report is at or above failOn.
func ShouldFail(report *review.Report, failOn string) bool {
	return report.Summary.HighestSeverity != 0 && review.MeetsThreshold(report.Summary.HighestSeverity, failOn)
}

func totalFindings(c review.SeverityCounts) int {
	return c.Critical + c.High + c.Medium + c.Low
}

func lineLabel(f review.Finding) string {
	switch {
	case f.Lines == nil:
		return "file"
	case f.Lines.Start == f.Lines.End:
		return fmt.Sprintf("%d", f.Lines.Start)
	default:
		return fmt.Sprintf("%d-%d", f.Lines.Start, f.Lines.End)
	}
}

func title(f review.Finding) string {
	if f.Title != "" {
		return f.Title
	}
	return f.Message
}
