package review

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/corpus"
	"github.com/dshills/lens/internal/depgraph"
	"github.com/dshills/lens/internal/providers"
	"github.com/dshills/lens/internal/redact"
)

// ToolName identifies lens in reports.
const ToolName = "lens"

// Notes attached to files that are not sent for review.
const (
	NoteNoCode   = "no code found in file"
	NoteWithheld = "withheld by privacy.redactPaths"
)

// Engine runs a review over a corpus.
type Engine struct {
	reviewer  providers.Reviewer
	cfg       config.Config
	rules     *Rules
	repo      RepoInfo
	version   string
	tokenizer Tokenizer
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules adds a rules pack to every prompt.
func WithRules(r *Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithRepo records repository metadata in the report.
func WithRepo(info RepoInfo) Option {
	return func(e *Engine) { e.repo = info }
}

// WithVersion sets the version reported in the envelope.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// WithTokenizer replaces the token estimator.
func WithTokenizer(t Tokenizer) Option {
	return func(e *Engine) { e.tokenizer = t }
}

// NewEngine creates an Engine. The configuration is fixed for the Engine's
// lifetime.
func NewEngine(reviewer providers.Reviewer, cfg config.Config, opts ...Option) *Engine {
	e := &Engine{reviewer: reviewer, cfg: cfg, version: "dev", tokenizer: EstimateTokenizer{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Budget returns the token budget derived from the configuration.
func (e *Engine) Budget() TokenBudget {
	return TokenBudget{
		PerUnit:      e.cfg.TokenBudgetPerUnit,
		ContextShare: e.cfg.ContextShare,
		Depth:        e.cfg.ContextDepth,
		Tokenizer:    e.tokenizer,
	}
}

// Plan is the set of units a run would dispatch.
type Plan struct {
	Graph *depgraph.Graph
	Units []ReviewUnit
	// Skipped maps files that are not dispatched to the reason.
	Skipped map[string]string
}

// Plan validates the configuration and corpus, builds the dependency graph
// and chunks every file. Nothing is sent to the provider.
func (e *Engine) Plan(files []corpus.SourceFile) (*Plan, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrEmptyCorpus
	}

	g := depgraph.Build(files)
	budget := e.Budget()

	// Withheld files stay in the graph but never become context, so they
	// do not consume the context allotment.
	var shareable []corpus.SourceFile
	withheld := make(map[string]bool)
	for _, f := range files {
		if redact.ShouldRedactPath(f.Path, e.cfg.Privacy.RedactPaths) {
			withheld[f.Path] = true
			continue
		}
		shareable = append(shareable, f)
	}
	index := corpus.Index(shareable)

	plan := &Plan{Graph: g, Skipped: make(map[string]string)}
	for _, f := range files {
		switch {
		case strings.TrimSpace(f.Content) == "":
			plan.Skipped[f.Path] = NoteNoCode
		case withheld[f.Path]:
			plan.Skipped[f.Path] = NoteWithheld
		default:
			plan.Units = append(plan.Units, Chunk(f, g, index, budget)...)
		}
	}

	logger.WithFields(logger.Fields{
		"files":     len(files),
		"units":     len(plan.Units),
		"edges":     len(g.Edges()),
		"skipped":   len(plan.Skipped),
		"languages": strings.Join(languages(plan.Units), ","),
	}).Debug("review planned")
	return plan, nil
}

// Run reviews files and returns the report. Per-unit failures are recorded
// in the report; only invalid configuration or an empty corpus return an
// error.
func (e *Engine) Run(ctx context.Context, files []corpus.SourceFile) (*Report, error) {
	start := time.Now()

	plan, err := e.Plan(files)
	if err != nil {
		return nil, err
	}
	planMs := time.Since(start).Milliseconds()

	dispatcher := NewDispatcher(e.reviewer, e.cfg, PromptOptions{
		MaxFindings: e.cfg.MaxFindings,
		Rules:       e.rules,
		Privacy: redact.Policy{
			RedactSecrets: e.cfg.Privacy.RedactSecrets,
			Paths:         e.cfg.Privacy.RedactPaths,
		},
	})

	llmStart := time.Now()
	results := dispatcher.Dispatch(ctx, plan.Units)
	llmMs := time.Since(llmStart).Milliseconds()

	reports := Aggregate(results, e.cfg.SimilarityThreshold)
	for p, note := range plan.Skipped {
		reports[p] = FileReport{Path: p, Status: StatusComplete, Findings: []Finding{}, Note: note}
	}

	summary := ComputeSummary(reports)
	for _, r := range results {
		summary.TokensUsed += r.TokensUsed
		summary.Attempts += r.Attempts
	}
	summary.PeakInFlight = dispatcher.Peak()

	logger.WithFields(logger.Fields{
		"files":    summary.Files,
		"units":    summary.Units,
		"attempts": summary.Attempts,
		"failed":   summary.Statuses.Failed,
		"partial":  summary.Statuses.Partial,
	}).Info("review finished")

	return &Report{
		Tool:     ToolName,
		Version:  e.version,
		RunID:    uuid.NewString(),
		Repo:     e.repo,
		Provider: e.cfg.Provider,
		Model:    e.cfg.Model,
		Summary:  summary,
		Files:    reports,
		Timing: Timing{
			PlanMs:  planMs,
			LLMMs:   llmMs,
			TotalMs: time.Since(start).Milliseconds(),
		},
	}, nil
}
