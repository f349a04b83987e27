package review

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadRules(t *testing.T) {
	t.Parallel()

	t.Run("should return nil for an empty path", func(t *testing.T) {
		t.Parallel()

		rules, err := LoadRules("")
		require.NoError(t, err)
		assert.Nil(t, rules)
	})

	t.Run("should load JSON", func(t *testing.T) {
		t.Parallel()

		p := writeRules(t, "rules.json", `{
  "focus": ["security", "performance"],
  "severityOverrides": {"security": "critical"},
  "required": [{"id": "SEC-1", "text": "Check for SQL injection"}]
}`)

		rules, err := LoadRules(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"security", "performance"}, rules.Focus)
		assert.Equal(t, "critical", rules.SeverityOverrides["security"])
		assert.Equal(t, []RequiredCheck{{ID: "SEC-1", Text: "Check for SQL injection"}}, rules.Required)
	})

	t.Run("should load YAML", func(t *testing.T) {
		t.Parallel()

		p := writeRules(t, "rules.yaml", "focus:\n  - testing\nseverityOverrides:\n  style: low\n")

		rules, err := LoadRules(p)
		require.NoError(t, err)
		assert.Equal(t, []string{"testing"}, rules.Focus)
		assert.Equal(t, "low", rules.SeverityOverrides["style"])
	})

	t.Run("should reject invalid overrides", func(t *testing.T) {
		t.Parallel()

		_, err := LoadRules(writeRules(t, "bad.json", `{"severityOverrides": {"security": "urgent"}}`))
		assert.ErrorContains(t, err, "invalid severity")

		_, err = LoadRules(writeRules(t, "bad2.json", `{"severityOverrides": {"typos": "low"}}`))
		assert.ErrorContains(t, err, "unknown category")
	})

	t.Run("should fail on missing or malformed files", func(t *testing.T) {
		t.Parallel()

		_, err := LoadRules(filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorContains(t, err, "reading rules file")

		_, err = LoadRules(writeRules(t, "broken.json", "{not json"))
		assert.ErrorContains(t, err, "parsing rules file")
	})
}

func TestBuildRulesPromptSection(t *testing.T) {
	t.Parallel()

	assert.Empty(t, BuildRulesPromptSection(nil))

	section := BuildRulesPromptSection(&Rules{
		Focus:             []string{"security"},
		SeverityOverrides: map[string]string{"style": "low", "security": "high"},
		Required:          []RequiredCheck{{ID: "R1", Text: "Validate input"}},
	})

	assert.Contains(t, section, "Focus areas: security.")
	assert.Contains(t, section, "- security findings should be rated as high severity.\n- style findings should be rated as low severity.\n")
	assert.Contains(t, section, "- [R1] Validate input")
}

func TestApplySeverityOverrides(t *testing.T) {
	t.Parallel()

	findings := []RawFinding{
		{Category: CategorySecurity, Severity: SeverityLow, Message: "a"},
		{Category: CategoryStyle, Severity: SeverityHigh, Message: "b"},
	}

	assert.Equal(t, findings, ApplySeverityOverrides(findings, nil))

	got := ApplySeverityOverrides(findings, &Rules{SeverityOverrides: map[string]string{"security": "critical"}})
	assert.Equal(t, SeverityCritical, got[0].Severity)
	assert.Equal(t, SeverityHigh, got[1].Severity)
}
