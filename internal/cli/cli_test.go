package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lens/internal/review"
)

// resetFlags resets all package-level flag variables to their defaults.
func resetFlags() {
	flagVerbose = false
	flagRoot = "."
	flagInclude = ""
	flagExclude = ""
	flagExt = ""
	flagProvider = ""
	flagModel = ""
	flagFormat = ""
	flagOut = ""
	flagFailOn = ""
	flagThreshold = ""
	flagMaxFindings = 0
	flagConcurrency = 0
	flagBudget = 0
	flagDepth = 0
	flagRules = ""
	flagNoRedact = false
	flagNoCache = false
	flagRepoConfig = false
	configShowYAML = false
}

// isolate points configuration and credentials at empty locations so the
// developer's own settings never leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	resetFlags()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, env := range []string{"LENS_PROVIDER", "LENS_MODEL", "LENS_FORMAT", "LENS_FAIL_ON", "LENS_CACHE", "OPENAI_API_KEY", "LENS_OPENAI_BASE_URL", "LENS_DEBUG"} {
		t.Setenv(env, "")
	}
}

// runCLI executes the command tree and captures stdout.
func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	return execute(args), out.String()
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func sampleRepo(t *testing.T) string {
	return writeRepo(t, map[string]string{
		"app/main.py":  "from app.store import save\n\ndef main():\n    save(None)\n",
		"app/store.py": "def save(record):\n    record.write()\n",
		".lens.yaml":   "baseBackoffMs: 1\nmaxBackoffMs: 2\nretryCeiling: 1\n",
	})
}

// chatServer answers OpenAI-compatible requests with content, or with
// status when it is not 200.
func chatServer(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
			"usage":   map[string]int{"total_tokens": 50},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("LENS_OPENAI_BASE_URL", server.URL)
	return server, &hits
}

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"should return nil for an empty string", "", nil},
		{"should keep a single value", "foo", []string{"foo"}},
		{"should split values", "a,b,c", []string{"a", "b", "c"}},
		{"should trim whitespace", " a , b , c ", []string{"a", "b", "c"}},
		{"should skip empty parts", ",a,,b,", []string{"a", "b"}},
		{"should keep glob patterns", "*.go,src/**/*.ts", []string{"*.go", "src/**/*.ts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitComma(tt.input))
		})
	}
}

func TestBuildOverrides(t *testing.T) {
	t.Run("should be empty without flags", func(t *testing.T) {
		resetFlags()
		assert.Empty(t, buildOverrides())
	})

	t.Run("should map set flags to config keys", func(t *testing.T) {
		resetFlags()
		flagProvider = "anthropic"
		flagFailOn = "high"
		flagConcurrency = 8
		flagBudget = 3000
		flagNoRedact = true
		flagNoCache = true
		flagExt = ".go,.py"

		assert.Equal(t, map[string]string{
			"provider":              "anthropic",
			"failOn":                "high",
			"maxConcurrency":        "8",
			"tokenBudgetPerUnit":    "3000",
			"privacy.redactSecrets": "false",
			"cache.enabled":         "false",
			"extensions":            ".go,.py",
		}, buildOverrides())
	})
}

func TestExitCodeFor(t *testing.T) {
	finding := review.Finding{Severity: review.SeverityHigh, Message: "m"}
	reportWith := func(files map[string]review.FileReport) *review.Report {
		return &review.Report{Files: files, Summary: review.ComputeSummary(files)}
	}

	tests := []struct {
		name   string
		report *review.Report
		failOn string
		want   int
	}{
		{
			"should succeed without findings",
			reportWith(map[string]review.FileReport{"a.go": {Status: review.StatusComplete}}),
			"low", ExitSuccess,
		},
		{
			"should fail on findings at the threshold",
			reportWith(map[string]review.FileReport{"a.go": {Status: review.StatusComplete, Findings: []review.Finding{finding}}}),
			"high", ExitFindings,
		},
		{
			"should ignore findings below the threshold",
			reportWith(map[string]review.FileReport{"a.go": {Status: review.StatusComplete, Findings: []review.Finding{finding}}}),
			"critical", ExitSuccess,
		},
		{
			"should report rejected credentials",
			reportWith(map[string]review.FileReport{"a.go": {Status: review.StatusFailed, ErrorKind: review.KindFatal, Error: "authentication error: bad key"}}),
			"none", ExitAuthError,
		},
		{
			"should report a run where every file failed",
			reportWith(map[string]review.FileReport{"a.go": {Status: review.StatusFailed, ErrorKind: review.KindExhausted, Error: "server error"}}),
			"none", ExitRuntimeError,
		},
		{
			"should succeed when some files were reviewed",
			reportWith(map[string]review.FileReport{
				"a.go": {Status: review.StatusFailed, ErrorKind: review.KindExhausted, Error: "server error"},
				"b.go": {Status: review.StatusComplete},
			}),
			"none", ExitSuccess,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.report, tt.failOn))
		})
	}
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, ExitAuthError, codeFor(withCode(ExitAuthError, errors.New("no key"))))
	assert.Equal(t, ExitRuntimeError, codeFor(fmt.Errorf("wrapped: %w", withCode(ExitRuntimeError, errors.New("disk")))))
	assert.Equal(t, ExitUsageError, codeFor(errors.New("unknown flag")))
	assert.NoError(t, withCode(ExitRuntimeError, nil))
}

func TestVersion(t *testing.T) {
	isolate(t)

	code, out := runCLI(t, "version")

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "lens version "+version+"\n", out)
}

func TestPlanAndGraph(t *testing.T) {
	isolate(t)
	root := sampleRepo(t)

	t.Run("should list units without credentials", func(t *testing.T) {
		resetFlags()

		code, out := runCLI(t, "plan", "--root", root)

		assert.Equal(t, ExitSuccess, code)
		assert.Contains(t, out, "app/main.py [1/1] lines 1-4")
		assert.Contains(t, out, "1 context files")
		assert.Contains(t, out, "2 units, 0 skipped files")
	})

	t.Run("should print dependency edges", func(t *testing.T) {
		resetFlags()

		code, out := runCLI(t, "graph", "--root", root)

		assert.Equal(t, ExitSuccess, code)
		assert.Contains(t, out, "app/main.py -> app/store.py")
		assert.Contains(t, out, "2 files, 1 edges, 0 unresolved imports")
	})

	t.Run("should reject an empty selection", func(t *testing.T) {
		resetFlags()

		code, _ := runCLI(t, "plan", "--root", root, "docs")

		assert.Equal(t, ExitUsageError, code)
	})
}

func TestReview(t *testing.T) {
	isolate(t)
	root := sampleRepo(t)
	finding := `[{"severity":"high","category":"bug","title":"Nil record","message":"record may be None","startLine":2}]`

	t.Run("should write the report and gate on findings", func(t *testing.T) {
		resetFlags()
		_, hits := chatServer(t, http.StatusOK, finding)
		out := filepath.Join(t.TempDir(), "report.json")

		code, _ := runCLI(t, "review", "--root", root, "--format", "json", "--out", out, "--fail-on", "high")

		assert.Equal(t, ExitFindings, code)
		assert.Equal(t, int32(2), hits.Load())

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		var report review.Report
		require.NoError(t, json.Unmarshal(data, &report))
		assert.Equal(t, "lens", report.Tool)
		assert.Equal(t, 2, report.Summary.Counts.High)
		assert.Equal(t, 100, report.Summary.TokensUsed)
		assert.Equal(t, review.StatusComplete, report.Files["app/store.py"].Status)
	})

	t.Run("should pass below the fail-on threshold", func(t *testing.T) {
		resetFlags()
		chatServer(t, http.StatusOK, finding)

		code, _ := runCLI(t, "review", "--root", root, "--format", "json", "--out", filepath.Join(t.TempDir(), "r.json"), "--fail-on", "critical")

		assert.Equal(t, ExitSuccess, code)
	})

	t.Run("should exit with the auth code when the key is rejected", func(t *testing.T) {
		resetFlags()
		_, hits := chatServer(t, http.StatusUnauthorized, "")

		code, _ := runCLI(t, "review", "--root", root, "--format", "json", "--out", filepath.Join(t.TempDir(), "r.json"))

		assert.Equal(t, ExitAuthError, code)
		assert.Equal(t, int32(2), hits.Load(), "fatal errors are not retried")
	})

	t.Run("should exit with the auth code without credentials", func(t *testing.T) {
		resetFlags()
		t.Setenv("OPENAI_API_KEY", "")

		code, _ := runCLI(t, "review", "--root", root)

		assert.Equal(t, ExitAuthError, code)
	})

	t.Run("should reject invalid flag values", func(t *testing.T) {
		resetFlags()

		code, _ := runCLI(t, "review", "--root", root, "--format", "xml")

		assert.Equal(t, ExitUsageError, code)
	})
}

func TestConfigCommands(t *testing.T) {
	isolate(t)

	t.Run("should set and show global values", func(t *testing.T) {
		resetFlags()

		code, out := runCLI(t, "config", "set", "maxConcurrency", "7")
		require.Equal(t, ExitSuccess, code)
		assert.Equal(t, "Set maxConcurrency = 7\n", out)

		code, out = runCLI(t, "config", "show", "--root", t.TempDir())
		require.Equal(t, ExitSuccess, code)
		var shown map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &shown))
		assert.Equal(t, 7.0, shown["maxConcurrency"])
	})

	t.Run("should refuse values that fail validation", func(t *testing.T) {
		resetFlags()

		code, _ := runCLI(t, "config", "set", "maxConcurrency", "0")

		assert.Equal(t, ExitUsageError, code)
	})

	t.Run("should write a repository file", func(t *testing.T) {
		resetFlags()
		root := t.TempDir()

		code, _ := runCLI(t, "config", "init", "--repo", "--root", root)

		require.Equal(t, ExitSuccess, code)
		assert.FileExists(t, filepath.Join(root, ".lens.yaml"))
	})
}

func TestCacheCommands(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("LENS_CACHE", "true")
	root := writeRepo(t, map[string]string{".lens.yaml": "cache:\n  enabled: true\n  dir: " + dir + "\n"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.json"), []byte(`{"key":"abc","response":"[]"}`), 0o600))

	code, out := runCLI(t, "cache", "stats", "--root", root)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, `"entries": 1`)

	resetFlags()
	code, out = runCLI(t, "cache", "clear", "--root", root)
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "Removed 1 cached responses")
}
