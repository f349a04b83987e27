package cli

import (
	"errors"
	"fmt"
	"slices"

	logger "github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/dshills/lens/internal/cache"
	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/corpus"
	"github.com/dshills/lens/internal/providers"
	"github.com/dshills/lens/internal/review"
)

// scope is what a command invocation selects: the review root, explicit
// paths below it and flag overrides.
type scope struct {
	Root      string
	Paths     []string
	Overrides map[string]string
}

// workspace is the loaded corpus and where it came from.
type workspace struct {
	Files []corpus.SourceFile
	Meta  corpus.RepoMeta
}

// buildContainer registers every constructor a command may need. Nothing is
// built until a command invokes it, so plan and graph never require
// credentials.
func buildContainer(s scope) (*dig.Container, error) {
	container := dig.New()
	for _, ctor := range []any{
		func() scope { return s },
		provideConfig,
		provideWorkspace,
		provideRules,
		provideCache,
		provideReviewer,
		provideTokenizer,
		provideEngine,
	} {
		if err := container.Provide(ctor); err != nil {
			return nil, fmt.Errorf("registering %T: %w", ctor, err)
		}
	}
	return container, nil
}

func provideConfig(s scope) (config.Config, error) {
	cfg, err := config.Load(s.Root, s.Overrides)
	if err != nil {
		return config.Config{}, withCode(ExitUsageError, err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, withCode(ExitUsageError, err)
	}
	return cfg, nil
}

func provideWorkspace(s scope, cfg config.Config) (*workspace, error) {
	files, meta, err := corpus.Load(s.Root, corpus.Options{
		Extensions:   cfg.Extensions,
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
		Paths:        s.Paths,
		MaxFileBytes: cfg.MaxFileBytes,
	})
	if err != nil {
		return nil, withCode(ExitRuntimeError, fmt.Errorf("loading files: %w", err))
	}
	if len(files) == 0 {
		return nil, withCode(ExitUsageError, fmt.Errorf("%w under %s", review.ErrEmptyCorpus, meta.Root))
	}
	logger.WithFields(logger.Fields{"root": meta.Root, "files": len(files)}).Debug("corpus loaded")
	return &workspace{Files: files, Meta: meta}, nil
}

func provideRules(cfg config.Config) (*review.Rules, error) {
	rules, err := review.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, withCode(ExitUsageError, fmt.Errorf("loading rules: %w", err))
	}
	return rules, nil
}

func provideCache(cfg config.Config) (*cache.Cache, error) {
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		return nil, withCode(ExitRuntimeError, fmt.Errorf("opening cache: %w", err))
	}
	return c, nil
}

// provideReviewer builds the configured provider from environment
// credentials, behind the response cache when it is enabled.
func provideReviewer(cfg config.Config, c *cache.Cache) (providers.Reviewer, error) {
	if !slices.Contains(providers.Names(), cfg.Provider) {
		return nil, withCode(ExitUsageError, fmt.Errorf("unknown provider %q (supported: %v)", cfg.Provider, providers.Names()))
	}
	opts := providers.CredentialsFromEnv(cfg.Provider)
	opts.Timeout = cfg.RequestTimeout()
	r, err := providers.New(cfg.Provider, cfg.Model, opts)
	if err != nil {
		return nil, withCode(ExitAuthError, err)
	}
	return cache.Wrap(r, c, cfg.Model, review.Valid), nil
}

// provideTokenizer counts budgets in the configured model's BPE tokens.
func provideTokenizer(cfg config.Config) review.Tokenizer {
	return review.TokenizerFor(cfg.Model)
}

type engineParams struct {
	dig.In

	Reviewer  providers.Reviewer
	Config    config.Config
	Rules     *review.Rules
	Workspace *workspace
	Tokenizer review.Tokenizer
}

func provideEngine(p engineParams) *review.Engine {
	return review.NewEngine(p.Reviewer, p.Config, engineOptions(p.Rules, p.Workspace, p.Tokenizer)...)
}

func engineOptions(rules *review.Rules, ws *workspace, tok review.Tokenizer) []review.Option {
	return []review.Option{
		review.WithTokenizer(tok),
		review.WithRules(rules),
		review.WithVersion(version),
		review.WithRepo(review.RepoInfo{Root: ws.Meta.Root, Head: ws.Meta.Head, Branch: ws.Meta.Branch}),
	}
}

// invoke runs fn with its arguments resolved from the container.
func invoke(s scope, fn any) error {
	container, err := buildContainer(s)
	if err != nil {
		return withCode(ExitRuntimeError, err)
	}
	if err := container.Invoke(fn); err != nil {
		var ee *exitError
		if errors.As(dig.RootCause(err), &ee) {
			return ee
		}
		return err
	}
	return nil
}
