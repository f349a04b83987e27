package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/corpus"
	"github.com/dshills/lens/internal/providers"
)

func sampleCorpus() []corpus.SourceFile {
	return []corpus.SourceFile{
		corpus.NewSourceFile("app/main.py", "from app.store import save\n\ndef main():\n    save(None)\n"),
		corpus.NewSourceFile("app/store.py", "def save(record):\n    record.write()\n"),
		corpus.NewSourceFile("app/__init__.py", ""),
	}
}

func TestEngine_Run(t *testing.T) {
	t.Parallel()

	// given
	reviewer := &stubReviewer{respond: func(_ int, req providers.ReviewRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "TARGET slice of app/store.py") {
			return `[{"severity":"high","category":"bug","title":"Nil record","message":"record may be None","startLine":2}]`, nil
		}
		return "[]", nil
	}}
	engine := NewEngine(reviewer, testConfig(),
		WithVersion("1.2.3"),
		WithRepo(RepoInfo{Root: "/src/app", Branch: "main"}),
	)

	// when
	report, err := engine.Run(context.Background(), sampleCorpus())

	// then
	require.NoError(t, err)
	assert.Equal(t, ToolName, report.Tool)
	assert.Equal(t, "1.2.3", report.Version)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "main", report.Repo.Branch)
	assert.Equal(t, "openai", report.Provider)
	assert.Equal(t, []string{"app/__init__.py", "app/main.py", "app/store.py"}, report.Paths())

	store := report.Files["app/store.py"]
	assert.Equal(t, StatusComplete, store.Status)
	require.Len(t, store.Findings, 1)
	assert.Equal(t, &LineRange{Start: 2, End: 2}, store.Findings[0].Lines)
	assert.Equal(t, "app/store.py", store.Findings[0].Path)
	assert.NotEmpty(t, store.Findings[0].ID)

	empty := report.Files["app/__init__.py"]
	assert.Equal(t, StatusComplete, empty.Status)
	assert.Equal(t, NoteNoCode, empty.Note)
	assert.Empty(t, empty.Findings)

	assert.Equal(t, 2, reviewer.calls())
	assert.Equal(t, 3, report.Summary.Files)
	assert.Equal(t, 2, report.Summary.Units)
	assert.Equal(t, 2, report.Summary.Attempts)
	assert.Equal(t, 14, report.Summary.TokensUsed)
	assert.Equal(t, 1, report.Summary.Counts.High)
	assert.Equal(t, SeverityHigh, report.Summary.HighestSeverity)
	assert.Equal(t, 3, report.Summary.Statuses.Complete)
	assert.GreaterOrEqual(t, report.Summary.PeakInFlight, 1)
}

func TestEngine_RunSendsDependencyContext(t *testing.T) {
	t.Parallel()

	reviewer := &stubReviewer{respond: respondWith("[]")}

	_, err := NewEngine(reviewer, testConfig()).Run(context.Background(), sampleCorpus())
	require.NoError(t, err)

	var mainPrompt string
	for _, p := range reviewer.prompts() {
		if strings.Contains(p, "TARGET slice of app/main.py") {
			mainPrompt = p
		}
	}
	require.NotEmpty(t, mainPrompt)
	assert.Contains(t, mainPrompt, "--- BEGIN CONTEXT app/store.py (imported by the target) ---")
	assert.Contains(t, mainPrompt, "record.write()")
}

func TestEngine_RunErrors(t *testing.T) {
	t.Parallel()

	t.Run("should reject invalid configuration before dispatch", func(t *testing.T) {
		t.Parallel()

		reviewer := &stubReviewer{respond: respondWith("[]")}
		cfg := testConfig()
		cfg.MaxConcurrency = 0

		_, err := NewEngine(reviewer, cfg).Run(context.Background(), sampleCorpus())

		assert.ErrorIs(t, err, config.ErrInvalid)
		assert.Zero(t, reviewer.calls())
	})

	t.Run("should reject an empty corpus", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(&stubReviewer{respond: respondWith("[]")}, testConfig()).Run(context.Background(), nil)

		assert.ErrorIs(t, err, ErrEmptyCorpus)
	})

	t.Run("should record per-unit failures in the report", func(t *testing.T) {
		t.Parallel()

		reviewer := &stubReviewer{respond: func(int, providers.ReviewRequest) (string, error) {
			return "", errors.New("connection refused")
		}}
		cfg := testConfig()
		cfg.RetryCeiling = 1

		report, err := NewEngine(reviewer, cfg).Run(context.Background(), sampleCorpus())

		require.NoError(t, err)
		assert.Equal(t, StatusFailed, report.Files["app/main.py"].Status)
		assert.Equal(t, KindExhausted, report.Files["app/main.py"].ErrorKind)
		assert.Equal(t, 2, report.Summary.Statuses.Failed)
		assert.Equal(t, 4, report.Summary.Attempts)
	})

	t.Run("should mark units canceled when the run is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := NewEngine(&stubReviewer{respond: respondWith("[]")}, testConfig()).Run(ctx, sampleCorpus())

		require.NoError(t, err)
		assert.Equal(t, KindCanceled, report.Files["app/store.py"].ErrorKind)
	})
}

func TestEngine_Plan(t *testing.T) {
	t.Parallel()

	// given
	files := append(sampleCorpus(),
		corpus.NewSourceFile("deploy/secrets.py", "PASSWORD = 'x'\n"),
		corpus.SourceFile{Path: "big.txt", Content: repeatLines(1000, 39)},
	)
	cfg := testConfig()
	cfg.TokenBudgetPerUnit = 3000
	reviewer := &stubReviewer{respond: respondWith("[]")}

	// when
	plan, err := NewEngine(reviewer, cfg).Plan(files)

	// then
	require.NoError(t, err)
	assert.Zero(t, reviewer.calls())
	assert.Equal(t, map[string]string{
		"app/__init__.py":   NoteNoCode,
		"deploy/secrets.py": NoteWithheld,
	}, plan.Skipped)

	var big int
	for _, u := range plan.Units {
		if u.Target == "big.txt" {
			big++
		}
	}
	assert.Equal(t, 4, big)
	assert.Len(t, plan.Units, 6)
	assert.True(t, plan.Graph.HasEdge("app/main.py", "app/store.py"))
}

func TestEngine_Budget(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.TokenBudgetPerUnit = 5000
	cfg.ContextShare = 0.25
	cfg.ContextDepth = 2

	b := NewEngine(nil, cfg, WithTokenizer(lineTokenizer{})).Budget()

	assert.Equal(t, 5000, b.PerUnit)
	assert.Equal(t, 1250, b.ContextAllotment())
	assert.Equal(t, 2, b.Depth)
	assert.Equal(t, lineTokenizer{}, b.Tokenizer)
}

func TestEngine_PlanSkipsWithheldContext(t *testing.T) {
	t.Parallel()

	// given main.py importing a withheld file that would fill the allotment
	files := []corpus.SourceFile{
		corpus.NewSourceFile("app/main.py", "import app.secrets\nimport app.store\n\nstore.save(secrets.TOKEN)\n"),
		corpus.NewSourceFile("app/secrets.py", repeatLines(40, 10)),
		corpus.NewSourceFile("app/store.py", "def save(v):\n    return v\n"),
	}
	cfg := testConfig()
	cfg.TokenBudgetPerUnit = 20
	cfg.ContextShare = 0.5
	cfg.ContextDepth = 1

	// when
	plan, err := NewEngine(nil, cfg, WithTokenizer(lineTokenizer{})).Plan(files)

	// then
	require.NoError(t, err)
	assert.True(t, plan.Graph.HasEdge("app/main.py", "app/secrets.py"))
	assert.Equal(t, NoteWithheld, plan.Skipped["app/secrets.py"])

	var main *ReviewUnit
	for i := range plan.Units {
		if plan.Units[i].Target == "app/main.py" {
			main = &plan.Units[i]
		}
	}
	require.NotNil(t, main)
	require.Len(t, main.Fragments, 1)
	assert.Equal(t, "app/store.py", main.Fragments[0].Path)
	assert.False(t, main.Fragments[0].Truncated)
	assert.Equal(t, 2, main.ContextTokens)
}
