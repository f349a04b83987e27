package review

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// DefaultSimilarity is the message similarity at which two findings of the
// same category on overlapping lines are considered duplicates.
const DefaultSimilarity = 0.8

// Aggregate merges unit results into one report per target file.
func Aggregate(results []UnitResult, threshold float64) map[string]FileReport {
	groups := make(map[string][]UnitResult)
	for _, r := range results {
		groups[r.Unit.Target] = append(groups[r.Unit.Target], r)
	}

	reports := make(map[string]FileReport, len(groups))
	for target, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Unit.Index < group[j].Unit.Index
		})
		reports[target] = aggregateFile(target, group, threshold)
	}
	return reports
}

func aggregateFile(path string, group []UnitResult, threshold float64) FileReport {
	fr := FileReport{Path: path, Units: len(group), Findings: []Finding{}}

	var firstErr *DispatchError
	var findings []Finding
	for _, r := range group {
		if r.Err != nil {
			fr.FailedUnits++
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		for _, raw := range r.Findings {
			findings = append(findings, remap(path, r.Unit, raw))
		}
	}

	switch {
	case fr.FailedUnits == 0:
		fr.Status = StatusComplete
	case fr.FailedUnits < fr.Units:
		fr.Status = StatusPartial
	default:
		fr.Status = StatusFailed
		findings = nil
	}
	if firstErr != nil {
		fr.Error = firstErr.Error()
		fr.ErrorKind = firstErr.Kind
	}

	findings = Dedup(findings, threshold)
	SortFindings(findings)
	assignIDs(findings)
	if findings != nil {
		fr.Findings = findings
	}
	return fr
}

// remap converts a unit-local finding to file coordinates. Ranges are
// clamped to the unit's slice; a range starting outside it is dropped and
// the finding becomes file-level.
func remap(path string, u ReviewUnit, raw RawFinding) Finding {
	f := Finding{
		Path:       path,
		Severity:   raw.Severity,
		Category:   raw.Category,
		Title:      raw.Title,
		Message:    raw.Message,
		Suggestion: raw.Suggestion,
		Confidence: raw.Confidence,
		Tags:       raw.Tags,
		Unit:       u.Index,
	}
	if raw.Lines == nil {
		return f
	}
	start, end := raw.Lines.Start, raw.Lines.End
	if start < 1 || start > u.LineCount {
		return f
	}
	end = max(min(end, u.LineCount), start)
	offset := u.StartLine - 1
	f.Lines = &LineRange{Start: start + offset, End: end + offset}
	return f
}

// Dedup merges findings that describe the same issue. Findings must be in
// unit order, then response order; of two duplicates the more severe is
// kept, and on equal severity the earlier one. Dedup(Dedup(x)) equals
// Dedup(x).
func Dedup(findings []Finding, threshold float64) []Finding {
	for {
		next := dedupPass(findings, threshold)
		if len(next) == len(findings) {
			return next
		}
		findings = next
	}
}

func dedupPass(findings []Finding, threshold float64) []Finding {
	if len(findings) == 0 {
		return findings
	}
	kept := make([]Finding, 0, len(findings))
	for _, f := range findings {
		merged := false
		for i := range kept {
			if duplicate(kept[i], f, threshold) {
				if f.Severity > kept[i].Severity {
					kept[i] = f
				}
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, f)
		}
	}
	return kept
}

func duplicate(a, b Finding, threshold float64) bool {
	if a.Category != b.Category {
		return false
	}
	switch {
	case a.Lines == nil && b.Lines == nil:
	case a.Lines == nil || b.Lines == nil:
		return false
	case a.Lines.Start > b.Lines.End+1 || b.Lines.Start > a.Lines.End+1:
		return false
	}
	return levenshtein.Similarity(normalize(a.Message), normalize(b.Message), nil) >= threshold
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SortFindings orders findings by severity (highest first), then start line
// with file-level findings last, then message.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		switch {
		case a.Lines != nil && b.Lines == nil:
			return true
		case a.Lines == nil && b.Lines != nil:
			return false
		case a.Lines != nil && b.Lines != nil && a.Lines.Start != b.Lines.Start:
			return a.Lines.Start < b.Lines.Start
		}
		return a.Message < b.Message
	})
}

// assignIDs gives each finding a stable identifier derived from its
// location and wording, suffixed when two findings collide.
func assignIDs(findings []Finding) {
	seen := make(map[string]int)
	for i := range findings {
		id := findingID(findings[i])
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		findings[i].ID = id
	}
}

func findingID(f Finding) string {
	start := 0
	if f.Lines != nil {
		start = f.Lines.Start
	}
	label := f.Title
	if label == "" {
		label = f.Message
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d:%s", f.Path, f.Category, start, label)))
	return fmt.Sprintf("%x", h[:8])
}
