package executor

import (
	"time"

	"github.com/itstheanurag/judgexec/internal/harness"
)

// TestInput is one caller supplied test case. Input holds one value per line
// in argument order; Expected is compared against trimmed stdout.
type TestInput struct {
	ID       string
	Input    string
	Expected string
	Hidden   bool
}

// Request is immutable once handed to the executor. A non-nil Function
// selects literal-embedding mode; otherwise every test case is a separate
// stdin-driven run.
type Request struct {
	ID            string
	Language      string
	Source        string
	Stdin         string
	TestCases     []TestInput
	Function      *harness.Contract
	StopOnFailure bool
	// TimeLimit and MemoryLimitMB override the configured defaults and are
	// clamped to the configured maxima.
	TimeLimit     time.Duration
	MemoryLimitMB int
}

// ExecutionResult is the outcome of one single run.
type ExecutionResult struct {
	RequestID   string
	Language    string
	Stdout      string
	Stderr      string
	ExitCode    int
	Runtime     time.Duration
	MemoryBytes int64
	Failure     *Failure
}

func (r *ExecutionResult) Success() bool {
	return r.Failure == nil
}

// Status is the summary verdict reported in metrics and run records.
func (r *ExecutionResult) Status() string {
	return statusOf(r.Failure, true)
}

type TestCaseResult struct {
	Index        int
	ID           string
	DisplayInput string
	Expected     string
	Actual       string
	Passed       bool
	Hidden       bool
	Runtime      time.Duration
	Failure      *Failure
}

// RunOutcome aggregates every test case of one request, in request order.
type RunOutcome struct {
	RequestID        string
	Language         string
	Passed           int
	Total            int
	Runtime          time.Duration
	Results          []TestCaseResult
	CompilationError string
	// Failure is set when the request failed as a whole.
	Failure *Failure
}

func (o *RunOutcome) Success() bool {
	return o.Failure == nil && o.CompilationError == "" && o.Passed == o.Total
}

func (o *RunOutcome) Status() string {
	if o.Failure == nil && o.CompilationError != "" {
		return string(CompilationError)
	}
	return statusOf(o.Failure, o.Success())
}

// failAll marks every case failed with f, keeping the placeholder fields.
func (o *RunOutcome) failAll(f *Failure) {
	o.Passed = 0
	for i := range o.Results {
		o.Results[i].Passed = false
		o.Results[i].Failure = f
	}
}

func newOutcome(req Request) *RunOutcome {
	out := &RunOutcome{
		RequestID: req.ID,
		Language:  req.Language,
		Total:     len(req.TestCases),
		Results:   make([]TestCaseResult, len(req.TestCases)),
	}
	for i, tc := range req.TestCases {
		out.Results[i] = TestCaseResult{
			Index:        i,
			ID:           tc.ID,
			DisplayInput: harness.Display(tc.Input),
			Expected:     tc.Expected,
			Hidden:       tc.Hidden,
		}
	}
	return out
}
