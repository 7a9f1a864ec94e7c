package pipeline

import (
	"time"

	"github.com/0xmhha/fundme-harness/internal/report"
)

// Stage represents a pipeline stage
type Stage int

const (
	StageInit Stage = iota
	StageFund
	StageRun
	StageReport
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageInit:
		return "INITIALIZE"
	case StageFund:
		return "FUND"
	case StageRun:
		return "RUN"
	case StageReport:
		return "REPORT"
	case StageComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// StageResult represents the result of a pipeline stage
type StageResult struct {
	Stage    Stage
	Success  bool
	Duration time.Duration
	Message  string
	Error    error
}

// RunConfig holds runtime configuration for the pipeline
type RunConfig struct {
	// Skip topping up funder accounts
	SkipFunding bool

	// Show progress bars instead of per-case lines
	ShowProgress bool

	// Upper bound for one case including its hooks
	CaseTimeout time.Duration

	// Interval for receipt and balance polling
	PollInterval time.Duration
}

// DefaultRunConfig returns default run configuration
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		SkipFunding:  false,
		ShowProgress: false,
		CaseTimeout:  10 * time.Minute,
		PollInterval: 500 * time.Millisecond,
	}
}

// Result represents the complete pipeline execution result
type Result struct {
	// Execution info
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Stage results
	StageResults []*StageResult

	// Case summary
	Skipped     bool
	CasesPassed int
	CasesFailed int

	// Detailed report
	Report *report.Report

	// Exported report files
	Files []string

	// Errors encountered
	Errors []error
}

// NewResult creates a new pipeline result
func NewResult() *Result {
	return &Result{
		StartTime:    time.Now(),
		StageResults: make([]*StageResult, 0),
		Errors:       make([]error, 0),
	}
}

// AddStageResult adds a stage result
func (r *Result) AddStageResult(sr *StageResult) {
	r.StageResults = append(r.StageResults, sr)
	if sr.Error != nil {
		r.Errors = append(r.Errors, sr.Error)
	}
}

// Finalize completes the result
func (r *Result) Finalize() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
}

// Success returns true if all stages succeeded and no case failed
func (r *Result) Success() bool {
	for _, sr := range r.StageResults {
		if !sr.Success {
			return false
		}
	}
	return r.CasesFailed == 0
}
