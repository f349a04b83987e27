package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/lens/internal/depgraph"
	"github.com/dshills/lens/internal/lang"
	"github.com/dshills/lens/internal/redact"
)

const systemPrompt = `You are a strict, expert code reviewer. You review one slice of a source file at a time and produce structured findings in JSON format.

Rules:
1. Review only the TARGET slice. The CONTEXT files are dependencies of the target (files it imports or files that import it); use them to understand the target, but do not report issues that exist only in context.
2. Look for syntax and logic errors, bugs, security vulnerabilities, performance problems, correctness issues, maintainability and refactoring opportunities, and departures from the language's best practices. Avoid bikeshedding on style unless it impacts readability significantly.
3. Be concise and actionable. Every finding must include a concrete suggestion.
4. Reference line numbers exactly as they are numbered in the TARGET slice.
5. Rate severity as "low", "medium", "high", or "critical". Reserve "critical" for exploitable security flaws, data loss, or crashes on common paths.
6. Rate your confidence from 0.0 to 1.0.
7. Categorize each finding as one of: bug, security, performance, correctness, style, maintainability, testing, docs.

You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble. Just the JSON array.

Each finding must have this exact structure:
{
  "severity": "low|medium|high|critical",
  "category": "bug|security|performance|correctness|style|maintainability|testing|docs",
  "title": "Short descriptive title",
  "message": "What is wrong and why it matters",
  "suggestion": "How to fix it, with code if helpful",
  "confidence": 0.0-1.0,
  "startLine": 1,
  "endLine": 1,
  "tags": ["optional", "tags"]
}

Omit startLine and endLine when a finding applies to the slice as a whole.

If there are no issues, respond with an empty array: []`

// SystemPrompt returns the system prompt for the LLM.
func SystemPrompt() string {
	return systemPrompt
}

// PromptOptions shapes the user prompt for a unit.
type PromptOptions struct {
	MaxFindings int
	Rules       *Rules
	Privacy     redact.Policy
}

// BuildUserPrompt renders the context fragments and the line-numbered target
// slice of u. Fragments withheld by the privacy policy are left out. Lines
// are numbered from 1 within the slice.
func BuildUserPrompt(u ReviewUnit, opts PromptOptions) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review the TARGET slice of %s", u.Target)
	if u.Total > 1 {
		fmt.Fprintf(&b, " (part %d of %d)", u.Index+1, u.Total)
	}
	b.WriteString(".\n\n")

	if opts.MaxFindings > 0 {
		fmt.Fprintf(&b, "Return at most %d findings.\n", opts.MaxFindings)
	}
	if u.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang.DisplayName(u.Language))
	}
	if section := BuildRulesPromptSection(opts.Rules); section != "" {
		b.WriteString(section)
	}

	for _, f := range u.Fragments {
		text, ok := opts.Privacy.Content(f.Path, f.Text)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n--- BEGIN CONTEXT %s (%s)", f.Path, relationLabel(f.Relation))
		if f.Truncated {
			b.WriteString(", truncated")
		}
		b.WriteString(" ---\n")
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- END CONTEXT %s ---\n", f.Path)
	}

	target, _ := opts.Privacy.Content(u.Target, u.Text)
	fmt.Fprintf(&b, "\n--- BEGIN TARGET %s ---\n", u.Target)
	b.WriteString(numberLines(target))
	fmt.Fprintf(&b, "--- END TARGET %s ---\n", u.Target)

	return b.String()
}

// BuildRepairPrompt asks the model to correct output that failed validation.
func BuildRepairPrompt(userPrompt, previous string, err error) string {
	return fmt.Sprintf(
		"Your previous response did not match the required format. The error was: %s\n\n"+
			"Respond with ONLY a valid JSON array of findings using the exact structure from the instructions. "+
			"Every finding needs a valid severity, a valid category and a non-empty message.\n\n"+
			"Your previous response was:\n%s\n\nThe original request was:\n%s",
		err.Error(), previous, userPrompt,
	)
}

func relationLabel(r depgraph.Relation) string {
	switch r {
	case depgraph.RelImports:
		return "imported by the target"
	case depgraph.RelImportedBy:
		return "imports the target"
	default:
		return string(r)
	}
}

func numberLines(text string) string {
	lines := splitLines(text)
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%*d | %s", width, i+1, line)
		if !strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// languages lists the display names of the languages of units, sorted.
func languages(units []ReviewUnit) []string {
	seen := make(map[string]bool)
	var names []string
	for _, u := range units {
		if u.Language == "" || seen[u.Language] {
			continue
		}
		seen[u.Language] = true
		names = append(names, lang.DisplayName(u.Language))
	}
	sort.Strings(names)
	return names
}
