package review

import (
	"strings"

	"github.com/dshills/lens/internal/corpus"
	"github.com/dshills/lens/internal/depgraph"
	"github.com/dshills/lens/internal/lang"
)

// Fragment is dependency text attached to a unit as context.
type Fragment struct {
	Path      string            `json:"path"`
	Relation  depgraph.Relation `json:"relation"`
	Text      string            `json:"-"`
	Tokens    int               `json:"tokens"`
	Truncated bool              `json:"truncated,omitempty"`
}

// ReviewUnit is one request payload: a slice of the target file plus
// context fragments. Units of a file share the same fragments.
type ReviewUnit struct {
	Target    string     `json:"target"`
	Language  string     `json:"language,omitempty"`
	Index     int        `json:"index"`
	Total     int        `json:"total"`
	Fragments []Fragment `json:"fragments,omitempty"`
	Text      string     `json:"-"`
	// StartLine is the 1-based file line of the slice's first line.
	StartLine     int  `json:"startLine"`
	LineCount     int  `json:"lineCount"`
	Tokens        int  `json:"tokens"`
	ContextTokens int  `json:"contextTokens"`
	Oversized     bool `json:"oversized,omitempty"`
}

// EndLine is the 1-based file line of the slice's last line.
func (u ReviewUnit) EndLine() int {
	if u.LineCount == 0 {
		return u.StartLine
	}
	return u.StartLine + u.LineCount - 1
}

// Chunk builds the review units for target. Context comes from the target's
// graph neighbors, most relevant first, until the context allotment is used.
// The target text is split at structural boundaries when it does not fit in
// what remains; a single line that alone exceeds the limit becomes an
// oversized unit.
func Chunk(target corpus.SourceFile, g *depgraph.Graph, files map[string]corpus.SourceFile, budget TokenBudget) []ReviewUnit {
	tok := budget.tokenizer()
	fragments, contextTokens := gatherContext(target, g, files, budget)

	limit := budget.PerUnit - contextTokens
	if limit < 1 {
		limit = 1
	}

	lines := splitLines(target.Content)
	slices := splitTarget(lines, boundaries(target, lines), limit, tok)

	units := make([]ReviewUnit, len(slices))
	for i, s := range slices {
		text := strings.Join(lines[s.start:s.end], "")
		units[i] = ReviewUnit{
			Target:        target.Path,
			Language:      target.Language,
			Index:         i,
			Total:         len(slices),
			Fragments:     fragments,
			Text:          text,
			StartLine:     s.start + 1,
			LineCount:     s.end - s.start,
			Tokens:        s.tokens,
			ContextTokens: contextTokens,
			Oversized:     s.tokens > limit,
		}
	}
	return units
}

// gatherContext collects neighbor text until the allotment is used. The
// first neighbor that does not fit whole is cut at a line boundary to fill
// the remainder, and no further neighbors are considered.
func gatherContext(target corpus.SourceFile, g *depgraph.Graph, files map[string]corpus.SourceFile, budget TokenBudget) ([]Fragment, int) {
	allot := budget.ContextAllotment()
	if g == nil || allot <= 0 {
		return nil, 0
	}
	tok := budget.tokenizer()

	var fragments []Fragment
	used := 0
	for _, n := range g.Neighbors(target.Path, budget.Depth) {
		f, ok := files[n.Path]
		if !ok || strings.TrimSpace(f.Content) == "" {
			continue
		}
		tokens := tok.Count(f.Content)
		if used+tokens <= allot {
			fragments = append(fragments, Fragment{Path: f.Path, Relation: n.Relation, Text: f.Content, Tokens: tokens})
			used += tokens
			continue
		}
		text, cut := truncateLines(f.Content, allot-used, tok)
		if cut > 0 {
			fragments = append(fragments, Fragment{Path: f.Path, Relation: n.Relation, Text: text, Tokens: cut, Truncated: true})
			used += cut
		}
		break
	}
	return fragments, used
}

// truncateLines returns the longest prefix of whole lines within max tokens.
func truncateLines(text string, max int, tok Tokenizer) (string, int) {
	var b strings.Builder
	used := 0
	for _, line := range splitLines(text) {
		n := tok.Count(line)
		if used+n > max {
			break
		}
		b.WriteString(line)
		used += n
	}
	return b.String(), used
}

// boundaries marks each line index at which a slice may start: a
// declaration start, or the line after a blank line.
func boundaries(target corpus.SourceFile, lines []string) []bool {
	marks := make([]bool, len(lines)+1)
	for _, i := range lang.DeclarationLines(target.Language, target.Content) {
		if i >= 0 && i < len(marks) {
			marks[i] = true
		}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			marks[i+1] = true
		}
	}
	return marks
}

type span struct {
	start, end int // line indexes, end exclusive
	tokens     int
}

// splitTarget cuts lines into spans of at most limit tokens. Each cut is
// placed at the last boundary that keeps the span within limit, falling back
// to the last line that fits.
func splitTarget(lines []string, marks []bool, limit int, tok Tokenizer) []span {
	if len(lines) == 0 {
		return []span{{}}
	}
	counts := make([]int, len(lines))
	for i, line := range lines {
		counts[i] = tok.Count(line)
	}

	var spans []span
	start := 0
	for start < len(lines) {
		// fit is the exclusive end of the longest run within limit.
		fit, total := start, 0
		for fit < len(lines) && total+counts[fit] <= limit {
			total += counts[fit]
			fit++
		}

		end := fit
		switch {
		case fit == len(lines):
			// the rest fits
		case fit == start:
			end = start + 1 // one line over the limit on its own
		default:
			for b := fit; b > start; b-- {
				if marks[b] {
					end = b
					break
				}
			}
		}

		tokens := 0
		for i := start; i < end; i++ {
			tokens += counts[i]
		}
		spans = append(spans, span{start: start, end: end, tokens: tokens})
		start = end
	}
	return spans
}
