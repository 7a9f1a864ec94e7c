package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/0xmhha/fundme-harness/internal/util/progress"
)

// Status is the outcome of a case
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "PASS"
	case StatusFailed:
		return "FAIL"
	case StatusSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of one case
type Result struct {
	Name     string
	Status   Status
	Err      error
	Duration time.Duration
	Panicked bool
}

// Report is the outcome of a suite run
type Report struct {
	Suite      string
	Skipped    bool
	SkipReason string
	Results    []*Result
	Start      time.Time
	End        time.Time
}

// Passed returns the number of passed cases
func (r *Report) Passed() int {
	return r.count(StatusPassed)
}

// Failed returns the number of failed cases
func (r *Report) Failed() int {
	return r.count(StatusFailed)
}

// OK reports whether no case failed
func (r *Report) OK() bool {
	return r.Failed() == 0
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r *Report) count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// RunnerConfig holds runner options
type RunnerConfig struct {
	Out          io.Writer
	ShowProgress bool
	Verbose      bool
	// CaseTimeout bounds hooks plus body of a single case; zero means none
	CaseTimeout time.Duration
	OnCaseStart func(name string)
	OnCaseEnd   func(result *Result)
}

// DefaultRunnerConfig returns the default runner configuration
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Out:         os.Stdout,
		CaseTimeout: 10 * time.Minute,
	}
}

// Runner executes suite cases one at a time
type Runner struct {
	config *RunnerConfig
}

// NewRunner creates a new runner
func NewRunner(config *RunnerConfig) *Runner {
	if config == nil {
		config = DefaultRunnerConfig()
	}
	if config.Out == nil {
		config.Out = io.Discard
	}
	return &Runner{config: config}
}

// Run executes every case of the suite in order. A failing case does not
// stop the ones after it; a canceled ctx marks the remaining cases skipped.
func (r *Runner) Run(ctx context.Context, suite *Suite) *Report {
	report := &Report{Suite: suite.Name, Start: time.Now()}

	if suite.Skipped() {
		report.Skipped = true
		report.SkipReason = suite.Gate.Reason
		report.End = time.Now()
		fmt.Fprintf(r.config.Out, "  [SKIP] %s: %s\n", suite.Name, suite.Gate.Reason)
		return report
	}

	cases := suite.Cases()
	bar := progress.New(r.config.Out, len(cases), "running cases", r.config.ShowProgress)

	for _, c := range cases {
		var result *Result
		if err := ctx.Err(); err != nil {
			result = &Result{Name: c.Name, Status: StatusSkipped, Err: err}
		} else {
			if r.config.OnCaseStart != nil {
				r.config.OnCaseStart(c.Name)
			}
			result = r.runCase(ctx, c)
		}
		report.Results = append(report.Results, result)

		if r.config.OnCaseEnd != nil {
			r.config.OnCaseEnd(result)
		}
		progress.Add(bar, 1)
		if bar == nil {
			r.printResult(result)
		}
	}
	progress.Finish(bar)

	report.End = time.Now()
	return report
}

func (r *Runner) runCase(ctx context.Context, c *Case) (result *Result) {
	result = &Result{Name: c.Name}
	start := time.Now()

	if r.config.CaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.CaseTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			result.Panicked = true
			result.Err = fmt.Errorf("panic: %v", p)
			if r.config.Verbose {
				fmt.Fprintf(r.config.Out, "%s\n", debug.Stack())
			}
		}
		result.Duration = time.Since(start)
		if result.Err != nil {
			result.Status = StatusFailed
		}
	}()

	for i, hook := range c.Hooks {
		if err := hook(ctx); err != nil {
			result.Err = fmt.Errorf("before each hook %d failed: %w", i, err)
			return result
		}
	}
	result.Err = c.Fn(ctx)
	return result
}

func (r *Runner) printResult(res *Result) {
	switch res.Status {
	case StatusPassed:
		fmt.Fprintf(r.config.Out, "  [OK] %s (%v)\n", res.Name, res.Duration.Round(time.Millisecond))
	case StatusSkipped:
		fmt.Fprintf(r.config.Out, "  [SKIP] %s\n", res.Name)
	default:
		fmt.Fprintf(r.config.Out, "  [FAIL] %s (%v)\n", res.Name, res.Duration.Round(time.Millisecond))
		fmt.Fprintf(r.config.Out, "         %v\n", res.Err)
		var assertErr *AssertionError
		if r.config.Verbose && errors.As(res.Err, &assertErr) {
			fmt.Fprintf(r.config.Out, "         expected: %s\n         actual:   %s\n", assertErr.Expected, assertErr.Actual)
		}
	}
}
