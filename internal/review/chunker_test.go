package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lens/internal/corpus"
	"github.com/dshills/lens/internal/depgraph"
)

func TestEstimateTokenizer(t *testing.T) {
	t.Parallel()

	tok := EstimateTokenizer{}

	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 2, tok.Count("abcd\n"))
	assert.Equal(t, 1, tok.Count("abc"))
	assert.Equal(t, 10, tok.Count(strings.Repeat("x", 39)+"\n"))

	t.Run("should sum to the same total however text is split at lines", func(t *testing.T) {
		text := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"
		total := 0
		for _, line := range splitLines(text) {
			total += tok.Count(line)
		}
		assert.Equal(t, tok.Count(text), total)
	})
}

func TestContextAllotment(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1200, TokenBudget{PerUnit: 3000, ContextShare: 0.4}.ContextAllotment())
	assert.Equal(t, 0, TokenBudget{PerUnit: 3000}.ContextAllotment())
	assert.Equal(t, 2, TokenBudget{PerUnit: 5, ContextShare: 0.5}.ContextAllotment())
}

func TestChunk_SmallFileIsOneUnit(t *testing.T) {
	t.Parallel()

	// given
	f := corpus.NewSourceFile("main.go", "package main\n\nfunc main() {}\n")
	g := depgraph.Build([]corpus.SourceFile{f})

	// when
	units := Chunk(f, g, corpus.Index([]corpus.SourceFile{f}), DefaultBudget(6000))

	// then
	require.Len(t, units, 1)
	assert.Equal(t, 0, units[0].Index)
	assert.Equal(t, 1, units[0].Total)
	assert.Equal(t, f.Content, units[0].Text)
	assert.Equal(t, 1, units[0].StartLine)
	assert.Equal(t, 3, units[0].LineCount)
	assert.Equal(t, "go", units[0].Language)
	assert.False(t, units[0].Oversized)
}

func TestChunk_EmptyFile(t *testing.T) {
	t.Parallel()

	f := corpus.SourceFile{Path: "empty.go"}
	units := Chunk(f, nil, nil, DefaultBudget(100))

	require.Len(t, units, 1)
	assert.Empty(t, units[0].Text)
	assert.Equal(t, 0, units[0].LineCount)
}

func TestChunk_TenThousandTokensInThreeThousandBudget(t *testing.T) {
	t.Parallel()

	// given 1000 lines of 10 tokens each and no dependencies
	f := corpus.SourceFile{Path: "big.txt", Content: repeatLines(1000, 39)}
	files := []corpus.SourceFile{f}
	budget := TokenBudget{PerUnit: 3000, ContextShare: 0.4, Depth: 1, Tokenizer: EstimateTokenizer{}}

	// when
	units := Chunk(f, depgraph.Build(files), corpus.Index(files), budget)

	// then
	require.Len(t, units, 4)
	assert.Equal(t, []int{3000, 3000, 3000, 1000}, []int{units[0].Tokens, units[1].Tokens, units[2].Tokens, units[3].Tokens})
	assert.Equal(t, []int{1, 301, 601, 901}, []int{units[0].StartLine, units[1].StartLine, units[2].StartLine, units[3].StartLine})
	for _, u := range units {
		assert.Equal(t, 4, u.Total)
		assert.LessOrEqual(t, u.Tokens+u.ContextTokens, budget.PerUnit)
	}
}

func TestChunk_ReconstructsFile(t *testing.T) {
	t.Parallel()

	content := strings.Join([]string{
		"package store",
		"",
		"import \"errors\"",
		"",
		"// ErrMissing is returned for unknown keys.",
		"var ErrMissing = errors.New(\"missing\")",
		"",
		"type Store struct {",
		"\tdata map[string]string",
		"}",
		"",
		"func (s *Store) Get(k string) (string, error) {",
		"\tv, ok := s.data[k]",
		"\tif !ok {",
		"\t\treturn \"\", ErrMissing",
		"\t}",
		"\treturn v, nil",
		"}",
		"",
		"func (s *Store) Put(k, v string) {",
		"\ts.data[k] = v",
		"}",
	}, "\n") // no trailing newline
	f := corpus.NewSourceFile("store/store.go", content)

	for _, perUnit := range []int{1, 2, 3, 5, 8, 13, 100} {
		budget := TokenBudget{PerUnit: perUnit, Tokenizer: lineTokenizer{}}
		units := Chunk(f, nil, nil, budget)

		var b strings.Builder
		next := 1
		for i, u := range units {
			assert.Equal(t, i, u.Index)
			assert.Equal(t, len(units), u.Total)
			assert.Equal(t, next, u.StartLine, "budget %d unit %d", perUnit, i)
			next += u.LineCount
			b.WriteString(u.Text)
		}
		assert.Equal(t, content, b.String(), "budget %d", perUnit)
	}
}

func TestChunk_SplitsAtDeclarationBoundary(t *testing.T) {
	t.Parallel()

	// given 13 lines with functions starting at lines 3, 7 and 11
	content := "package main\n\nfunc a() {\n\tprintln(\"a\")\n}\n\nfunc b() {\n\tprintln(\"b\")\n}\n\nfunc c() {\n\tprintln(\"c\")\n}\n"
	f := corpus.NewSourceFile("main.go", content)

	// when eight lines fit per unit
	units := Chunk(f, nil, nil, TokenBudget{PerUnit: 8, Tokenizer: lineTokenizer{}})

	// then the cut moves back to the start of func b
	require.Len(t, units, 2)
	assert.Equal(t, 1, units[0].StartLine)
	assert.Equal(t, 6, units[0].LineCount)
	assert.Equal(t, 7, units[1].StartLine)
	assert.True(t, strings.HasPrefix(units[1].Text, "func b() {"))
}

func TestChunk_OversizedLine(t *testing.T) {
	t.Parallel()

	// given a 101-token line between two short lines
	content := "short\n" + strings.Repeat("y", 400) + "\nshort\n"
	f := corpus.SourceFile{Path: "data.txt", Content: content}

	// when
	units := Chunk(f, nil, nil, TokenBudget{PerUnit: 50, Tokenizer: EstimateTokenizer{}})

	// then
	require.Len(t, units, 3)
	assert.False(t, units[0].Oversized)
	assert.True(t, units[1].Oversized)
	assert.Equal(t, 101, units[1].Tokens)
	assert.Equal(t, 1, units[1].LineCount)
	assert.Equal(t, 2, units[1].StartLine)
	assert.False(t, units[2].Oversized)
	assert.Equal(t, content, units[0].Text+units[1].Text+units[2].Text)
}

func TestChunk_Context(t *testing.T) {
	t.Parallel()

	// given a imports b and c, each three lines long
	files := []corpus.SourceFile{
		corpus.NewSourceFile("a.py", "import b\nimport c\n"+strings.Repeat("x = 1\n", 10)),
		corpus.NewSourceFile("b.py", "def f():\n    pass\n\n"),
		corpus.NewSourceFile("c.py", "def g():\n    pass\n\n"),
	}
	g := depgraph.Build(files)
	index := corpus.Index(files)

	t.Run("should truncate the first neighbor that does not fit and stop", func(t *testing.T) {
		t.Parallel()

		// when five lines of context fit
		units := Chunk(index["a.py"], g, index, TokenBudget{PerUnit: 10, ContextShare: 0.5, Depth: 1, Tokenizer: lineTokenizer{}})

		// then
		require.Len(t, units, 3)
		first := units[0]
		require.Len(t, first.Fragments, 2)
		assert.Equal(t, Fragment{Path: "b.py", Relation: depgraph.RelImports, Text: "def f():\n    pass\n\n", Tokens: 3}, first.Fragments[0])
		assert.Equal(t, Fragment{Path: "c.py", Relation: depgraph.RelImports, Text: "def g():\n    pass\n", Tokens: 2, Truncated: true}, first.Fragments[1])
		for _, u := range units {
			assert.Equal(t, 5, u.ContextTokens)
			assert.Equal(t, first.Fragments, u.Fragments)
			assert.LessOrEqual(t, u.Tokens, 5)
		}
	})

	t.Run("should attach importers as context", func(t *testing.T) {
		t.Parallel()

		units := Chunk(index["b.py"], g, index, TokenBudget{PerUnit: 100, ContextShare: 0.5, Depth: 1, Tokenizer: lineTokenizer{}})

		require.Len(t, units, 1)
		require.Len(t, units[0].Fragments, 1)
		assert.Equal(t, "a.py", units[0].Fragments[0].Path)
		assert.Equal(t, depgraph.RelImportedBy, units[0].Fragments[0].Relation)
	})

	t.Run("should carry no context when the share is zero", func(t *testing.T) {
		t.Parallel()

		units := Chunk(index["a.py"], g, index, TokenBudget{PerUnit: 100, Depth: 1, Tokenizer: lineTokenizer{}})

		require.Len(t, units, 1)
		assert.Empty(t, units[0].Fragments)
		assert.Zero(t, units[0].ContextTokens)
	})
}

func TestChunk_MutualImportsShareContext(t *testing.T) {
	t.Parallel()

	// given A.py and B.py importing each other
	files := []corpus.SourceFile{
		corpus.NewSourceFile("A.py", "import B\n\ndef a():\n    return B.b()\n"),
		corpus.NewSourceFile("B.py", "import A\n\ndef b():\n    return 1\n"),
	}
	g := depgraph.Build(files)
	index := corpus.Index(files)
	budget := TokenBudget{PerUnit: 100, ContextShare: 0.5, Depth: 3, Tokenizer: lineTokenizer{}}

	// when
	a := Chunk(index["A.py"], g, index, budget)
	b := Chunk(index["B.py"], g, index, budget)

	// then each sees the other exactly once
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	require.Len(t, a[0].Fragments, 1)
	require.Len(t, b[0].Fragments, 1)
	assert.Equal(t, "B.py", a[0].Fragments[0].Path)
	assert.Equal(t, "A.py", b[0].Fragments[0].Path)
	assert.Equal(t, index["B.py"].Content, a[0].Fragments[0].Text)
}
