package records

import (
	"context"
	"time"

	"github.com/itstheanurag/judgexec/internal/executor"
)

const (
	ModeSingle = "single"
	ModeTests  = "tests"
)

// Record summarises one finished request. It never carries source code or
// program output beyond the compiler diagnostics.
type Record struct {
	ID               string    `json:"id"`
	Language         string    `json:"language"`
	Mode             string    `json:"mode"`
	Status           string    `json:"status"`
	Passed           int       `json:"passed"`
	Total            int       `json:"total"`
	RuntimeMs        int64     `json:"runtimeMs"`
	CompilationError string    `json:"compilationError,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Sink stores or forwards records. Save must be safe for concurrent use.
type Sink interface {
	Name() string
	Save(ctx context.Context, rec *Record) error
}

func FromResult(res *executor.ExecutionResult, at time.Time) *Record {
	rec := &Record{
		ID:        res.RequestID,
		Language:  res.Language,
		Mode:      ModeSingle,
		Status:    res.Status(),
		Total:     1,
		RuntimeMs: res.Runtime.Milliseconds(),
		CreatedAt: at.UTC(),
	}
	if res.Success() {
		rec.Passed = 1
	}
	if res.Failure != nil && res.Failure.Kind == executor.CompilationError {
		rec.CompilationError = res.Failure.Message
	}
	return rec
}

func FromOutcome(out *executor.RunOutcome, at time.Time) *Record {
	return &Record{
		ID:               out.RequestID,
		Language:         out.Language,
		Mode:             ModeTests,
		Status:           out.Status(),
		Passed:           out.Passed,
		Total:            out.Total,
		RuntimeMs:        out.Runtime.Milliseconds(),
		CompilationError: out.CompilationError,
		CreatedAt:        at.UTC(),
	}
}
