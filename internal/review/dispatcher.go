package review

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/dshills/lens/internal/config"
	"github.com/dshills/lens/internal/providers"
)

// UnitResult is the terminal outcome of one review unit. Exactly one of
// Findings and Err is meaningful.
type UnitResult struct {
	Unit       ReviewUnit
	Findings   []RawFinding
	Err        *DispatchError
	Attempts   int
	TokensUsed int
}

// Dispatcher sends review units to a provider through a bounded worker pool.
type Dispatcher struct {
	reviewer    providers.Reviewer
	concurrency int
	policy      providers.Policy
	timeout     time.Duration
	maxTokens   int
	limiter     *rate.Limiter
	prompt      PromptOptions

	inFlight *atomic.Int64
	peak     *atomic.Int64
}

// NewDispatcher creates a Dispatcher using the run's configuration.
func NewDispatcher(reviewer providers.Reviewer, cfg config.Config, prompt PromptOptions) *Dispatcher {
	d := &Dispatcher{
		reviewer:    reviewer,
		concurrency: cfg.MaxConcurrency,
		policy: providers.Policy{
			MaxRetries:  cfg.RetryCeiling,
			BaseBackoff: cfg.BaseBackoff(),
			MaxBackoff:  cfg.MaxBackoff(),
		},
		timeout:   cfg.RequestTimeout(),
		maxTokens: cfg.MaxResponseTokens,
		prompt:    prompt,
		inFlight:  atomic.NewInt64(0),
		peak:      atomic.NewInt64(0),
	}
	if d.concurrency < 1 {
		d.concurrency = 1
	}
	if cfg.RequestsPerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return d
}

// Peak returns the largest number of concurrent provider calls observed.
func (d *Dispatcher) Peak() int {
	return int(d.peak.Load())
}

type indexedResult struct {
	index  int
	result UnitResult
}

// Dispatch reviews every unit and returns one result per unit, in the order
// of units. Units still queued when ctx is canceled resolve as canceled.
func (d *Dispatcher) Dispatch(ctx context.Context, units []ReviewUnit) []UnitResult {
	results := make([]UnitResult, len(units))
	if len(units) == 0 {
		return results
	}

	workers := min(d.concurrency, len(units))
	jobs := make(chan int)
	done := make(chan indexedResult, len(units))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				done <- indexedResult{index: i, result: d.process(ctx, units[i])}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for i := range units {
			select {
			case jobs <- i:
			case <-ctx.Done():
				for j := i; j < len(units); j++ {
					done <- indexedResult{index: j, result: canceled(units[j], ctx.Err())}
				}
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	for r := range done {
		results[r.index] = r.result
	}
	return results
}

func (d *Dispatcher) process(ctx context.Context, u ReviewUnit) UnitResult {
	res := UnitResult{Unit: u}
	userPrompt := BuildUserPrompt(u, d.prompt)
	req := providers.ReviewRequest{
		SystemPrompt: SystemPrompt(),
		UserPrompt:   userPrompt,
		MaxTokens:    d.maxTokens,
	}

	resp, attempts, err := d.call(ctx, u, req)
	res.Attempts += attempts
	if err != nil {
		res.Err = d.failure(ctx, err, res.Attempts)
		return res
	}
	res.TokensUsed += resp.TokensUsed

	findings, parseErr := ParseFindings(resp.Content)
	if parseErr != nil {
		logger.WithFields(logger.Fields{
			"target": u.Target,
			"unit":   u.Index,
			"error":  parseErr,
		}).Debug("response failed validation, asking for a repair")

		repair := req
		repair.UserPrompt = BuildRepairPrompt(userPrompt, resp.Content, parseErr)
		resp, attempts, err = d.call(ctx, u, repair)
		res.Attempts += attempts
		if err != nil {
			res.Err = d.failure(ctx, err, res.Attempts)
			return res
		}
		res.TokensUsed += resp.TokensUsed

		findings, parseErr = ParseFindings(resp.Content)
		if parseErr != nil {
			res.Err = &DispatchError{Kind: KindExhausted, Attempts: res.Attempts, Err: parseErr}
			return res
		}
	}

	res.Findings = ApplySeverityOverrides(findings, d.prompt.Rules)
	return res
}

// call makes one logical request, retrying transient failures.
func (d *Dispatcher) call(ctx context.Context, u ReviewUnit, req providers.ReviewRequest) (providers.ReviewResponse, int, error) {
	var resp providers.ReviewResponse
	attempts, err := providers.Retry(ctx, d.policy, func(int) error {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		d.observe(d.inFlight.Inc())
		defer d.inFlight.Dec()

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		r, err := reviewWithin(callCtx, d.reviewer, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.WithFields(logger.Fields{
			"target":  u.Target,
			"unit":    u.Index,
			"attempt": attempt,
			"wait":    wait,
			"error":   err,
		}).Warn("review request failed, retrying")
	})
	return resp, attempts, err
}

// reviewWithin returns when the call does or when ctx ends, whichever comes
// first. A reviewer that ignores ctx is left to finish in the background and
// its result is discarded.
func reviewWithin(ctx context.Context, rv providers.Reviewer, req providers.ReviewRequest) (providers.ReviewResponse, error) {
	type outcome struct {
		resp providers.ReviewResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := rv.Review(ctx, req)
		done <- outcome{resp: r, err: err}
	}()
	select {
	case o := <-done:
		return o.resp, o.err
	case <-ctx.Done():
		return providers.ReviewResponse{}, ctx.Err()
	}
}

func (d *Dispatcher) observe(n int64) {
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (d *Dispatcher) failure(ctx context.Context, err error, attempts int) *DispatchError {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return &DispatchError{Kind: KindCanceled, Attempts: attempts, Err: err}
	case providers.Classify(err) == providers.Fatal:
		return &DispatchError{Kind: KindFatal, Attempts: attempts, Err: err}
	default:
		return &DispatchError{Kind: KindExhausted, Attempts: attempts, Err: err}
	}
}

func canceled(u ReviewUnit, err error) UnitResult {
	return UnitResult{Unit: u, Err: &DispatchError{Kind: KindCanceled, Err: err}}
}
