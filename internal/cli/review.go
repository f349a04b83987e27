package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/output"
	"github.com/dshills/lens/internal/providers"
	"github.com/dshills/lens/internal/review"
)

// Corpus selection flags, shared by review, plan and graph.
var (
	flagRoot    string
	flagInclude string
	flagExclude string
	flagExt     string
)

// Review flags
var (
	flagProvider    string
	flagModel       string
	flagFormat      string
	flagOut         string
	flagFailOn      string
	flagThreshold   string
	flagMaxFindings int
	flagConcurrency int
	flagBudget      int
	flagDepth       int
	flagRules       string
	flagNoRedact    bool
	flagNoCache     bool
)

func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagRoot, "root", ".", "Repository root; paths are relative to it")
	cmd.Flags().StringVar(&flagInclude, "include", "", "Include file path globs (comma-separated)")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "Additional exclude globs (comma-separated)")
	cmd.Flags().StringVar(&flagExt, "ext", "", "File extensions to review, e.g. .go,.py (comma-separated)")
}

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagProvider, "provider", "", "LLM provider ("+strings.Join(providers.Names(), ", ")+")")
	cmd.Flags().StringVar(&flagModel, "model", "", "Model name")
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format ("+strings.Join(output.Formats, ", ")+")")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Exit 1 on findings at or above severity (none, low, medium, high, critical)")
	cmd.Flags().StringVar(&flagThreshold, "threshold", "", "Lowest severity to display")
	cmd.Flags().IntVar(&flagMaxFindings, "max-findings", 0, "Maximum findings requested per unit")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Maximum concurrent provider requests")
	cmd.Flags().IntVar(&flagBudget, "budget", 0, "Token budget per review unit")
	cmd.Flags().IntVar(&flagDepth, "depth", 0, "Dependency hops to include as context")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Rules file path (JSON or YAML)")
	cmd.Flags().BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "Bypass the response cache")
}

// buildOverrides maps set flags to config keys.
func buildOverrides() map[string]string {
	m := make(map[string]string)
	set := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	setInt := func(key string, v int) {
		if v > 0 {
			m[key] = strconv.Itoa(v)
		}
	}

	set("provider", flagProvider)
	set("model", flagModel)
	set("format", flagFormat)
	set("failOn", flagFailOn)
	set("severityThreshold", flagThreshold)
	set("rulesFile", flagRules)
	set("extensions", flagExt)
	set("include", flagInclude)
	setInt("maxFindings", flagMaxFindings)
	setInt("maxConcurrency", flagConcurrency)
	setInt("tokenBudgetPerUnit", flagBudget)
	setInt("contextDepth", flagDepth)
	if flagNoRedact {
		m["privacy.redactSecrets"] = "false"
	}
	if flagNoCache {
		m["cache.enabled"] = "false"
	}
	return m
}

func scopeFor(args []string) scope {
	s := scope{Root: flagRoot, Paths: args, Overrides: buildOverrides()}
	if flagExclude != "" {
		s.Overrides["exclude"] = strings.Join(append(excludeDefaults(s.Root), splitComma(flagExclude)...), ",")
	}
	return s
}

// excludeDefaults returns the exclude list the root resolves to before
// flags, so --exclude adds to it instead of replacing it.
func excludeDefaults(root string) []string {
	cfg, err := config.Load(root, nil)
	if err != nil {
		return config.Default().Exclude
	}
	return cfg.Exclude
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

var reviewCmd = &cobra.Command{
	Use:   "review [paths...]",
	Short: "Review files with their dependency context",
	Long: `Review every selected file under --root. Paths narrow the selection to files
or directories below the root. Exit codes: 0 ok, 1 findings at or above
--fail-on, 2 usage error, 3 authentication failure, 4 runtime error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagNoRedact {
			logger.Warn("Secret redaction is disabled")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return invoke(scopeFor(args), func(engine *review.Engine, cfg config.Config, ws *workspace) error {
			code, err := runReview(ctx, engine, cfg, ws)
			exitCode = code
			return err
		})
	},
}

// runReview runs the engine, writes the report and returns the exit code
// for a completed run.
func runReview(ctx context.Context, engine *review.Engine, cfg config.Config, ws *workspace) (int, error) {
	report, err := engine.Run(ctx, ws.Files)
	if err != nil {
		return ExitUsageError, withCode(ExitUsageError, err)
	}

	if err := output.WriteReport(output.Filter(report, cfg.SeverityThreshold), cfg.Format, flagOut); err != nil {
		return ExitRuntimeError, withCode(ExitRuntimeError, fmt.Errorf("writing output: %w", err))
	}

	return exitCodeFor(report, cfg.FailOn), nil
}

// exitCodeFor derives the exit code of a completed run. Rejected
// credentials win over findings; a run that reviewed nothing is a runtime
// failure.
func exitCodeFor(report *review.Report, failOn string) int {
	for _, fr := range report.Files {
		if fr.ErrorKind == review.KindFatal && providers.IsAuthMessage(fr.Error) {
			return ExitAuthError
		}
	}
	if output.ShouldFail(report, failOn) {
		return ExitFindings
	}
	s := report.Summary
	if s.Statuses.Failed > 0 && s.Statuses.Complete+s.Statuses.Partial == 0 {
		return ExitRuntimeError
	}
	return ExitSuccess
}

var planCmd = &cobra.Command{
	Use:   "plan [paths...]",
	Short: "Show the review units without calling a provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(scopeFor(args), func(cfg config.Config, rules *review.Rules, ws *workspace, tok review.Tokenizer) error {
			engine := review.NewEngine(nil, cfg, engineOptions(rules, ws, tok)...)
			plan, err := engine.Plan(ws.Files)
			if err != nil {
				return withCode(ExitUsageError, err)
			}
			return writePlan(cmd, engine.Budget(), plan)
		})
	},
}

func writePlan(cmd *cobra.Command, budget review.TokenBudget, plan *review.Plan) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Budget: %d tokens per unit, %d for context, depth %d\n\n",
		budget.PerUnit, budget.ContextAllotment(), budget.Depth)
	for _, u := range plan.Units {
		flags := ""
		if u.Oversized {
			flags = "  oversized"
		}
		fmt.Fprintf(w, "%s [%d/%d] lines %d-%d  %d+%d tokens  %d context files%s\n",
			u.Target, u.Index+1, u.Total, u.StartLine, u.EndLine(), u.Tokens, u.ContextTokens, len(u.Fragments), flags)
	}
	for _, p := range sortedKeys(plan.Skipped) {
		fmt.Fprintf(w, "%s skipped: %s\n", p, plan.Skipped[p])
	}
	_, err := fmt.Fprintf(w, "\n%d units, %d skipped files\n", len(plan.Units), len(plan.Skipped))
	return err
}

var graphCmd = &cobra.Command{
	Use:   "graph [paths...]",
	Short: "Print the file dependency graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(scopeFor(args), func(cfg config.Config, ws *workspace) error {
			plan, err := review.NewEngine(nil, cfg).Plan(ws.Files)
			if err != nil {
				return withCode(ExitUsageError, err)
			}
			w := cmd.OutOrStdout()
			g := plan.Graph
			for _, e := range g.Edges() {
				fmt.Fprintf(w, "%s -> %s\n", e.From, e.To)
			}
			for _, c := range g.Cycles() {
				fmt.Fprintf(w, "cycle: %s\n", strings.Join(c, ", "))
			}
			_, err = fmt.Fprintf(w, "\n%d files, %d edges, %d unresolved imports\n", len(g.Nodes()), len(g.Edges()), g.Unresolved())
			return err
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{reviewCmd, planCmd, graphCmd} {
		addCorpusFlags(cmd)
	}
	addReviewFlags(reviewCmd)
	planCmd.Flags().IntVar(&flagBudget, "budget", 0, "Token budget per review unit")
	planCmd.Flags().IntVar(&flagDepth, "depth", 0, "Dependency hops to include as context")
}
