package api

import (
	"time"

	"github.com/itstheanurag/judgexec/internal/executor"
	"github.com/itstheanurag/judgexec/internal/harness"
)

type ExecutionRequest struct {
	Language      string            `json:"language"`
	Code          string            `json:"code"`
	Stdin         string            `json:"stdin"`
	TestCases     []TestCaseRequest `json:"testCases"`
	Function      *FunctionRequest  `json:"function"`
	StopOnFailure bool              `json:"stopOnFailure"`
	TimeLimitMs   int               `json:"timeLimitMs"`
	MemoryLimitMb int               `json:"memoryLimitMb"`
}

type TestCaseRequest struct {
	ID       string `json:"id"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Hidden   bool   `json:"hidden"`
}

// FunctionRequest names the function under test. Types use C++ spellings
// (int, long long, vector<int>) or the int[] shorthand.
type FunctionRequest struct {
	Name       string         `json:"name"`
	ReturnType string         `json:"returnType"`
	Params     []ParamRequest `json:"params"`
	Method     bool           `json:"method"`
}

type ParamRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ExecutionResponse is the single-run shape, returned when no test cases are
// given.
type ExecutionResponse struct {
	RequestID string             `json:"requestId"`
	Language  string             `json:"language"`
	Success   bool               `json:"success"`
	Output    string             `json:"output"`
	Error     string             `json:"error,omitempty"`
	ErrorKind executor.ErrorKind `json:"errorKind,omitempty"`
	Stderr    string             `json:"stderr,omitempty"`
	ExitCode  int                `json:"exitCode"`
	Runtime   int64              `json:"runtime"` // ms
	MemoryKb  int64              `json:"memoryKb,omitempty"`
}

type TestRunResponse struct {
	RequestID        string             `json:"requestId"`
	Language         string             `json:"language"`
	Success          bool               `json:"success"`
	TestCaseResults  []TestCaseResponse `json:"testCaseResults"`
	Passed           int                `json:"passed"`
	Total            int                `json:"total"`
	Runtime          int64              `json:"runtime"` // ms
	CompilationError string             `json:"compilationError,omitempty"`
	Error            string             `json:"error,omitempty"`
	ErrorKind        executor.ErrorKind `json:"errorKind,omitempty"`
}

type TestCaseResponse struct {
	Index     int                `json:"index"`
	ID        string             `json:"id,omitempty"`
	Input     string             `json:"input"`
	Expected  string             `json:"expected"`
	Actual    string             `json:"actual"`
	Passed    bool               `json:"passed"`
	Runtime   int64              `json:"runtime"` // ms
	Error     string             `json:"error,omitempty"`
	ErrorKind executor.ErrorKind `json:"errorKind,omitempty"`
}

type LanguageResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Image       string `json:"image"`
	Compiled    bool   `json:"compiled"`
}

func (req ExecutionRequest) hasTests() bool {
	return len(req.TestCases) > 0 || req.Function != nil
}

func (req ExecutionRequest) toExecutor() (executor.Request, error) {
	out := executor.Request{
		Language:      req.Language,
		Source:        req.Code,
		Stdin:         req.Stdin,
		StopOnFailure: req.StopOnFailure,
		TimeLimit:     time.Duration(req.TimeLimitMs) * time.Millisecond,
		MemoryLimitMB: req.MemoryLimitMb,
	}
	for _, tc := range req.TestCases {
		out.TestCases = append(out.TestCases, executor.TestInput{
			ID:       tc.ID,
			Input:    tc.Input,
			Expected: tc.Expected,
			Hidden:   tc.Hidden,
		})
	}
	if req.Function != nil {
		params := make([]harness.ParamSpec, len(req.Function.Params))
		for i, p := range req.Function.Params {
			params[i] = harness.ParamSpec{Name: p.Name, Type: p.Type}
		}
		contract, err := harness.NewContract(req.Function.Name, req.Function.ReturnType, params, req.Function.Method)
		if err != nil {
			return out, err
		}
		out.Function = contract
	}
	return out, nil
}

func newExecutionResponse(res *executor.ExecutionResult) ExecutionResponse {
	resp := ExecutionResponse{
		RequestID: res.RequestID,
		Language:  res.Language,
		Success:   res.Success(),
		Output:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		Runtime:   res.Runtime.Milliseconds(),
		MemoryKb:  res.MemoryBytes / 1024,
	}
	if res.Failure != nil {
		resp.Error = res.Failure.Message
		resp.ErrorKind = res.Failure.Kind
	}
	return resp
}

// newTestRunResponse drops hidden cases from the listing; the counts still
// include them.
func newTestRunResponse(out *executor.RunOutcome) TestRunResponse {
	resp := TestRunResponse{
		RequestID:        out.RequestID,
		Language:         out.Language,
		Success:          out.Success(),
		TestCaseResults:  make([]TestCaseResponse, 0, len(out.Results)),
		Passed:           out.Passed,
		Total:            out.Total,
		Runtime:          out.Runtime.Milliseconds(),
		CompilationError: out.CompilationError,
	}
	if out.Failure != nil {
		resp.Error = out.Failure.Message
		resp.ErrorKind = out.Failure.Kind
	}
	for _, r := range out.Results {
		if r.Hidden {
			continue
		}
		tc := TestCaseResponse{
			Index:    r.Index,
			ID:       r.ID,
			Input:    r.DisplayInput,
			Expected: r.Expected,
			Actual:   r.Actual,
			Passed:   r.Passed,
			Runtime:  r.Runtime.Milliseconds(),
		}
		if r.Failure != nil {
			tc.Error = r.Failure.Message
			tc.ErrorKind = r.Failure.Kind
		}
		resp.TestCaseResults = append(resp.TestCaseResults, tc)
	}
	return resp
}
