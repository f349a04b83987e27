package review

import (
	"fmt"
	"sort"
	"strings"
)

// Severity is an ordinal; a higher value is more severe.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity maps a name such as "high" to its ordinal.
func ParseSeverity(name string) (Severity, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range severityNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, ok := ParseSeverity(string(b))
	if !ok {
		return fmt.Errorf("invalid severity %q", string(b))
	}
	*s = v
	return nil
}

// MeetsThreshold reports whether s is at or above the named threshold.
// "none" and "" never match.
func MeetsThreshold(s Severity, threshold string) bool {
	floor, ok := ParseSeverity(threshold)
	if !ok {
		return false
	}
	return s >= floor
}

// Category represents the type of finding.
type Category string

const (
	CategoryBug             Category = "bug"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryCorrectness     Category = "correctness"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryTesting         Category = "testing"
	CategoryDocs            Category = "docs"
)

// Categories lists every accepted category.
var Categories = []Category{
	CategoryBug, CategorySecurity, CategoryPerformance, CategoryCorrectness,
	CategoryStyle, CategoryMaintainability, CategoryTesting, CategoryDocs,
}

func validCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// LineRange is an inclusive, 1-based range of lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RawFinding is one suggestion as returned by the model for one unit. Lines
// are local to the unit's target slice.
type RawFinding struct {
	Category   Category   `json:"category"`
	Severity   Severity   `json:"severity"`
	Title      string     `json:"title,omitempty"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Lines      *LineRange `json:"lines,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// Finding is a deduplicated suggestion in file coordinates.
type Finding struct {
	ID         string     `json:"id"`
	Path       string     `json:"path"`
	Severity   Severity   `json:"severity"`
	Category   Category   `json:"category"`
	Title      string     `json:"title,omitempty"`
	Message    string     `json:"message"`
	Suggestion string     `json:"suggestion,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Lines      *LineRange `json:"lines,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Unit       int        `json:"unit"`
}

// Status is the outcome of reviewing one file.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
)

// FileReport is the result for one target file. It is not modified once the
// aggregator returns it.
type FileReport struct {
	Path        string    `json:"path"`
	Status      Status    `json:"status"`
	Findings    []Finding `json:"findings"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	Units       int       `json:"units"`
	FailedUnits int       `json:"failedUnits,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// RepoInfo contains repository metadata.
type RepoInfo struct {
	Root   string `json:"root"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// StatusCounts holds counts of files by status.
type StatusCounts struct {
	Complete int `json:"complete"`
	Partial  int `json:"partial"`
	Failed   int `json:"failed"`
}

// Summary provides an overview of a run.
type Summary struct {
	Files           int            `json:"files"`
	Units           int            `json:"units"`
	Counts          SeverityCounts `json:"counts"`
	Statuses        StatusCounts   `json:"statuses"`
	HighestSeverity Severity       `json:"highestSeverity,omitempty"`
	TokensUsed      int            `json:"tokensUsed"`
	Attempts        int            `json:"attempts"`
	PeakInFlight    int            `json:"peakInFlight"`
}

// Timing contains performance metrics.
type Timing struct {
	PlanMs  int64 `json:"planMs"`
	LLMMs   int64 `json:"llmMs"`
	TotalMs int64 `json:"totalMs"`
}

// Report is the envelope for one review run.
type Report struct {
	Tool     string                `json:"tool"`
	Version  string                `json:"version"`
	RunID    string                `json:"runId"`
	Repo     RepoInfo              `json:"repo"`
	Provider string                `json:"provider"`
	Model    string                `json:"model"`
	Summary  Summary               `json:"summary"`
	Files    map[string]FileReport `json:"files"`
	Timing   Timing                `json:"timing"`
}

// Paths returns the report's file paths in order.
func (r *Report) Paths() []string {
	paths := make([]string, 0, len(r.Files))
	for p := range r.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ComputeSummary counts findings and statuses across reports.
func ComputeSummary(files map[string]FileReport) Summary {
	var s Summary
	s.Files = len(files)
	for _, fr := range files {
		s.Units += fr.Units
		switch fr.Status {
		case StatusComplete:
			s.Statuses.Complete++
		case StatusPartial:
			s.Statuses.Partial++
		case StatusFailed:
			s.Statuses.Failed++
		}
		for _, f := range fr.Findings {
			switch f.Severity {
			case SeverityLow:
				s.Counts.Low++
			case SeverityMedium:
				s.Counts.Medium++
			case SeverityHigh:
				s.Counts.High++
			case SeverityCritical:
				s.Counts.Critical++
			}
			if f.Severity > s.HighestSeverity {
				s.HighestSeverity = f.Severity
			}
		}
	}
	return s
}
