package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// rawFinding is the JSON structure returned by the LLM.
type rawFinding struct {
	Severity   string   `json:"severity"`
	Category   string   `json:"category"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion"`
	Confidence *float64 `json:"confidence"`
	StartLine  int      `json:"startLine"`
	EndLine    int      `json:"endLine"`
	Tags       []string `json:"tags"`
}

// ParseFindings validates model output against the findings schema. The
// output must be a JSON array of findings, optionally inside a markdown code
// fence or under a top-level "findings" key. Any violation yields a
// *ParseError.
func ParseFindings(content string) ([]RawFinding, error) {
	doc := stripFence(strings.TrimSpace(content))
	if doc == "" {
		return nil, &ParseError{Reason: "empty response", Index: -1}
	}

	var items []json.RawMessage
	if strings.HasPrefix(doc, "{") {
		var wrapper struct {
			Findings *[]json.RawMessage `json:"findings"`
		}
		if err := json.Unmarshal([]byte(doc), &wrapper); err != nil {
			return nil, &ParseError{Reason: "invalid JSON", Index: -1, Err: err}
		}
		if wrapper.Findings == nil {
			return nil, &ParseError{Reason: "expected a JSON array of findings", Index: -1}
		}
		items = *wrapper.Findings
	} else if err := json.Unmarshal([]byte(doc), &items); err != nil {
		return nil, &ParseError{Reason: "invalid JSON array", Index: -1, Err: err}
	}

	findings := make([]RawFinding, 0, len(items))
	for i, item := range items {
		f, err := validateFinding(item)
		if err != nil {
			err.Index = i
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// Valid reports whether content passes ParseFindings.
func Valid(content string) bool {
	_, err := ParseFindings(content)
	return err == nil
}

func validateFinding(item json.RawMessage) (RawFinding, *ParseError) {
	if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
		return RawFinding{}, &ParseError{Reason: "finding must be a JSON object"}
	}
	var r rawFinding
	if err := json.Unmarshal(item, &r); err != nil {
		return RawFinding{}, &ParseError{Reason: "invalid finding", Err: err}
	}

	sev, ok := ParseSeverity(r.Severity)
	if !ok {
		return RawFinding{}, &ParseError{Reason: fmt.Sprintf("invalid severity %q", r.Severity)}
	}
	cat := Category(strings.ToLower(strings.TrimSpace(r.Category)))
	if !validCategory(cat) {
		return RawFinding{}, &ParseError{Reason: fmt.Sprintf("invalid category %q", r.Category)}
	}
	if strings.TrimSpace(r.Message) == "" {
		return RawFinding{}, &ParseError{Reason: "message is required"}
	}

	f := RawFinding{
		Category:   cat,
		Severity:   sev,
		Title:      strings.TrimSpace(r.Title),
		Message:    strings.TrimSpace(r.Message),
		Suggestion: strings.TrimSpace(r.Suggestion),
		Tags:       r.Tags,
	}
	if r.Confidence != nil {
		if *r.Confidence < 0 || *r.Confidence > 1 {
			return RawFinding{}, &ParseError{Reason: fmt.Sprintf("confidence %g outside [0, 1]", *r.Confidence)}
		}
		f.Confidence = *r.Confidence
	}

	switch {
	case r.StartLine < 0 || r.EndLine < 0:
		return RawFinding{}, &ParseError{Reason: "line numbers must not be negative"}
	case r.StartLine == 0 && r.EndLine > 0:
		return RawFinding{}, &ParseError{Reason: "endLine without startLine"}
	case r.StartLine > 0:
		end := r.EndLine
		if end == 0 {
			end = r.StartLine
		}
		if end < r.StartLine {
			return RawFinding{}, &ParseError{Reason: fmt.Sprintf("endLine %d before startLine %d", end, r.StartLine)}
		}
		f.Lines = &LineRange{Start: r.StartLine, End: end}
	}
	return f, nil
}

// stripFence removes a surrounding markdown code fence.
func stripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
