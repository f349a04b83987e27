package review

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFindings(t *testing.T) {
	t.Parallel()

	t.Run("should parse a valid array", func(t *testing.T) {
		t.Parallel()

		// given
		content := `[
  {
    "severity": "high",
    "category": "bug",
    "title": "Nil dereference",
    "message": "cfg may be nil here",
    "suggestion": "check cfg before use",
    "confidence": 0.9,
    "startLine": 4,
    "endLine": 6,
    "tags": ["nil"]
  },
  {"severity": "LOW", "category": "Style", "message": "  long line  ", "startLine": 2}
]`

		// when
		findings, err := ParseFindings(content)

		// then
		require.NoError(t, err)
		require.Len(t, findings, 2)
		assert.Equal(t, RawFinding{
			Category:   CategoryBug,
			Severity:   SeverityHigh,
			Title:      "Nil dereference",
			Message:    "cfg may be nil here",
			Suggestion: "check cfg before use",
			Confidence: 0.9,
			Lines:      &LineRange{Start: 4, End: 6},
			Tags:       []string{"nil"},
		}, findings[0])
		assert.Equal(t, SeverityLow, findings[1].Severity)
		assert.Equal(t, CategoryStyle, findings[1].Category)
		assert.Equal(t, "long line", findings[1].Message)
		assert.Equal(t, &LineRange{Start: 2, End: 2}, findings[1].Lines)
	})

	t.Run("should accept an empty array", func(t *testing.T) {
		t.Parallel()

		findings, err := ParseFindings("[]")
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("should strip markdown fences", func(t *testing.T) {
		t.Parallel()

		findings, err := ParseFindings("```json\n[{\"severity\":\"critical\",\"category\":\"security\",\"message\":\"sql injection\"}]\n```")
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, SeverityCritical, findings[0].Severity)
		assert.Nil(t, findings[0].Lines)
	})

	t.Run("should accept a findings wrapper object", func(t *testing.T) {
		t.Parallel()

		findings, err := ParseFindings(`{"findings":[{"severity":"medium","category":"performance","message":"quadratic loop"}]}`)
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, CategoryPerformance, findings[0].Category)
	})
}

func TestParseFindings_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		index   int
	}{
		{"empty response", "  ", -1},
		{"prose", "Looks good to me!", -1},
		{"object without findings", `{"issues": []}`, -1},
		{"unknown severity", `[{"severity":"medium","category":"bug","message":"a"},{"severity":"urgent","category":"bug","message":"b"}]`, 1},
		{"unknown category", `[{"severity":"low","category":"typo","message":"a"}]`, 0},
		{"missing message", `[{"severity":"low","category":"bug"}]`, 0},
		{"non-object element", `["just a string"]`, 0},
		{"end before start", `[{"severity":"low","category":"bug","message":"a","startLine":9,"endLine":3}]`, 0},
		{"end without start", `[{"severity":"low","category":"bug","message":"a","endLine":3}]`, 0},
		{"negative line", `[{"severity":"low","category":"bug","message":"a","startLine":-1}]`, 0},
		{"confidence out of range", `[{"severity":"low","category":"bug","message":"a","confidence":7}]`, 0},
	}

	for _, tt := range tests {
		t.Run("should reject "+tt.name, func(t *testing.T) {
			t.Parallel()

			// when
			_, err := ParseFindings(tt.content)

			// then
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.index, pe.Index)
			assert.False(t, Valid(tt.content))
		})
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Valid("[]"))
	assert.True(t, Valid(`[{"severity":"low","category":"docs","message":"missing doc comment"}]`))
	assert.False(t, Valid("[{"))
}
