package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lens/internal/review"
)

func sampleReport() *review.Report {
	files := map[string]review.FileReport{
		"app/store.py": {
			Path:   "app/store.py",
			Status: review.StatusComplete,
			Units:  1,
			Findings: []review.Finding{
				{
					ID: "a1", Path: "app/store.py", Severity: review.SeverityCritical, Category: review.CategorySecurity,
					Title: "SQL injection", Message: "user input reaches the query", Suggestion: "return db.execute(q, (name,))",
					Confidence: 0.9, Lines: &review.LineRange{Start: 12, End: 14}, Tags: []string{"sql"},
				},
				{
					ID: "a2", Path: "app/store.py", Severity: review.SeverityLow, Category: review.CategoryDocs,
					Message: "module lacks a docstring",
				},
			},
		},
		"app/main.py": {
			Path:        "app/main.py",
			Status:      review.StatusPartial,
			Units:       2,
			FailedUnits: 1,
			Error:       "server error: 503",
			ErrorKind:   review.KindExhausted,
			Findings: []review.Finding{
				{
					ID: "b1", Path: "app/main.py", Severity: review.SeverityMedium, Category: review.CategoryBug,
					Title: "Off by one", Message: "loop reads past the end", Lines: &review.LineRange{Start: 3, End: 3},
				},
			},
		},
		"app/__init__.py": {
			Path: "app/__init__.py", Status: review.StatusComplete, Findings: []review.Finding{}, Note: review.NoteNoCode,
		},
	}
	summary := review.ComputeSummary(files)
	summary.TokensUsed = 900
	summary.Attempts = 4
	summary.PeakInFlight = 2
	return &review.Report{
		Tool:     review.ToolName,
		Version:  "1.0.0",
		RunID:    "run-1",
		Repo:     review.RepoInfo{Root: "/src/app", Branch: "main"},
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Summary:  summary,
		Files:    files,
		Timing:   review.Timing{PlanMs: 3, LLMMs: 1200, TotalMs: 1210},
	}
}

func TestGetWriter(t *testing.T) {
	t.Parallel()

	for _, format := range append(Formats, "", "md") {
		w, err := GetWriter(format)
		require.NoError(t, err, format)
		assert.NotNil(t, w)
	}

	_, err := GetWriter("xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestTextWriter(t *testing.T) {
	t.Parallel()

	// given
	var buf bytes.Buffer

	// when
	require.NoError(t, (&TextWriter{}).Write(&buf, sampleReport()))

	// then
	out := buf.String()
	assert.Contains(t, out, "Lens Code Review (openai/gpt-4o-mini)")
	assert.Contains(t, out, "Files: 3 (2 complete, 1 partial, 0 failed) | Units: 3")
	assert.Contains(t, out, "Findings: 3 total (1 critical, 0 high, 1 medium, 0 low)")
	assert.Contains(t, out, "12-14  SQL injection")
	assert.Contains(t, out, "file  module lacks a docstring")
	assert.Contains(t, out, "1 of 2 units failed (exhausted): server error: 503")
	assert.Contains(t, out, review.NoteNoCode)
	assert.Contains(t, out, "Completed in 1210ms (plan: 3ms, LLM: 1200ms) | 4 requests, 900 tokens")
	assert.NotContains(t, out, "\x1b[", "no ANSI codes when not writing to a terminal")
	assert.Less(t, strings.Index(out, "app/main.py"), strings.Index(out, "app/store.py"))
}

func TestTextWriter_NoFindings(t *testing.T) {
	t.Parallel()

	report := &review.Report{Files: map[string]review.FileReport{
		"a.go": {Path: "a.go", Status: review.StatusComplete, Findings: []review.Finding{}},
	}}
	report.Summary = review.ComputeSummary(report.Files)

	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, report))

	assert.Contains(t, buf.String(), "No issues found.")
	assert.NotContains(t, buf.String(), "a.go")
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "lens", decoded["tool"])

	files := decoded["files"].(map[string]any)
	store := files["app/store.py"].(map[string]any)
	findings := store["findings"].([]any)
	first := findings[0].(map[string]any)
	assert.Equal(t, "critical", first["severity"])
	assert.Equal(t, map[string]any{"start": 12.0, "end": 14.0}, first["lines"])
	_, hasLines := findings[1].(map[string]any)["lines"]
	assert.False(t, hasLines)

	main := files["app/main.py"].(map[string]any)
	assert.Equal(t, "partial", main["status"])
	assert.Equal(t, "exhausted", main["errorKind"])
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, (&MarkdownWriter{}).Write(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "## Lens Code Review")
	assert.Contains(t, out, "| Critical | 1 |")
	assert.Contains(t, out, "| **Total** | **3** |")
	assert.Contains(t, out, "### Incomplete files")
	assert.Contains(t, out, "- `app/main.py` **partial**")
	assert.Contains(t, out, "<summary><code>app/store.py</code> (2)</summary>")
	assert.Contains(t, out, "**`app/store.py:12-14`** | CRITICAL | security")
	assert.Contains(t, out, "```python\nreturn db.execute(q, (name,))\n```")
	assert.Contains(t, out, "**`app/store.py:file`**")
}

func TestSARIFWriter(t *testing.T) {
	t.Parallel()

	// given
	var buf bytes.Buffer

	// when
	require.NoError(t, (&SARIFWriter{}).Write(&buf, sampleReport()))

	// then
	var log sarifLog
	require.NoError(t, json.Unmarshal(buf.Bytes(), &log))
	require.Len(t, log.Runs, 1)
	run := log.Runs[0]
	assert.Equal(t, "2.1.0", log.Version)
	assert.Equal(t, "lens", run.Tool.Driver.Name)
	assert.Len(t, run.Tool.Driver.Rules, 3)

	require.Len(t, run.Results, 3)
	assert.Equal(t, "warning", run.Results[0].Level)
	assert.Equal(t, "error", run.Results[1].Level)
	assert.Equal(t, &sarifRegion{StartLine: 12, EndLine: 14}, run.Results[1].Locations[0].PhysicalLocation.Region)
	assert.Len(t, run.Results[1].Fixes, 1)
	assert.Nil(t, run.Results[2].Locations[0].PhysicalLocation.Region)
	assert.Equal(t, "a2", run.Results[2].PartialFingerprints["lensFindingId"])

	require.Len(t, run.Invocations, 1)
	assert.True(t, run.Invocations[0].ExecutionSuccessful)
	require.Len(t, run.Invocations[0].ToolExecutionNotifications, 1)
	assert.Contains(t, run.Invocations[0].ToolExecutionNotifications[0].Message.Text, "server error: 503")
}

func TestGenerateRuleID_Stable(t *testing.T) {
	t.Parallel()

	f := review.Finding{Category: review.CategoryBug, Title: "Nil map write"}

	assert.Equal(t, generateRuleID(f), generateRuleID(f))
	assert.True(t, strings.HasPrefix(generateRuleID(f), "lens/bug/"))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	// given
	report := sampleReport()

	// when
	filtered := Filter(report, "medium")

	// then
	assert.Len(t, filtered.Files["app/store.py"].Findings, 1)
	assert.Len(t, filtered.Files["app/main.py"].Findings, 1)
	assert.Equal(t, 0, filtered.Summary.Counts.Low)
	assert.Equal(t, 1, filtered.Summary.Counts.Critical)
	assert.Equal(t, 900, filtered.Summary.TokensUsed)
	assert.Equal(t, 4, filtered.Summary.Attempts)
	assert.Equal(t, 2, filtered.Summary.PeakInFlight)
	assert.Equal(t, review.StatusPartial, filtered.Files["app/main.py"].Status)

	assert.Len(t, report.Files["app/store.py"].Findings, 2, "original report is untouched")
	assert.Empty(t, Filter(report, "none").Files["app/store.py"].Findings)
}

func TestShouldFail(t *testing.T) {
	t.Parallel()

	report := sampleReport()

	assert.True(t, ShouldFail(report, "critical"))
	assert.True(t, ShouldFail(report, "low"))
	assert.False(t, ShouldFail(report, "none"))
	assert.False(t, ShouldFail(&review.Report{}, "low"))
}

func TestWriteReport_ToFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "report.json")

	require.NoError(t, WriteReport(sampleReport(), "json", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Error(t, WriteReport(sampleReport(), "xml", out))
}
