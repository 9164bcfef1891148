package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itstheanurag/judgexec/internal/harness"
)

// runStdin compiles once, then runs every case in a fresh container with the
// case input on stdin and compares trimmed stdout with the expected text.
func (e *Executor) runStdin(ctx context.Context, j *job, out *RunOutcome) {
	cleanup, f := e.setup(ctx, j, e.stdinProgram(j))
	defer cleanup()
	if f != nil {
		e.failSetup(out, f)
		return
	}

	stopped := false
	for i, tc := range j.req.TestCases {
		r := &out.Results[i]
		switch {
		case stopped:
			r.Failure = fail(Skipped, "skipped")
			continue
		case ctx.Err() != nil:
			r.Failure = fail(InternalError, "request cancelled")
			continue
		}

		res, err := e.run(ctx, j, fmt.Sprintf("input_%d.txt", i), tc.Input, j.timeout)
		if err != nil {
			j.log.Error().Err(err).Int("test_case", i).Msg("run failed")
			r.Failure = fail(InternalError, internalMessage)
		} else {
			r.Runtime = res.Duration
			r.Actual = truncate(strings.TrimSpace(res.Stdout), e.conf.MaxOutputBytes)
			r.Failure = e.classify(res, j.timeout)
			if r.Failure == nil && outputMatches(res.Stdout, tc.Expected) {
				r.Passed = true
				out.Passed++
			}
		}
		out.Runtime += r.Runtime

		j.log.Debug().Int("test_case", i).Bool("passed", r.Passed).Msg("test case finished")
		if !r.Passed && j.req.StopOnFailure {
			stopped = true
		}
	}
}

// runLiteral embeds every case into one self checking program, runs it once
// and maps the printed markers back to the cases by index.
func (e *Executor) runLiteral(ctx context.Context, j *job, out *RunOutcome) {
	contract := j.req.Function
	cases := make([]harness.TestCase, len(j.req.TestCases))
	for i, tc := range j.req.TestCases {
		c, err := contract.NewCase(harness.CaseID(i), tc.Input, tc.Expected)
		if err != nil {
			e.failRequest(out, fail(InvalidRequest, err.Error()))
			return
		}
		c.DisplayInput = out.Results[i].DisplayInput
		cases[i] = c
	}

	sentinels := harness.NewSentinels(e.newNonce())
	program, err := harness.Emit(j.lang, j.req.Source, contract, cases, sentinels)
	if err != nil {
		e.failRequest(out, fail(InvalidRequest, err.Error()))
		return
	}

	cleanup, f := e.setup(ctx, j, program)
	defer cleanup()
	if f != nil {
		e.failSetup(out, f)
		return
	}

	// One process runs every case, so it gets every case's time budget.
	timeout := j.timeout * time.Duration(max(1, len(cases)))
	res, err := e.run(ctx, j, "", "", timeout)
	if err != nil {
		j.log.Error().Err(err).Msg("harness run failed")
		e.failRequest(out, fail(InternalError, internalMessage))
		return
	}
	out.Runtime = res.Duration

	procFailure := e.classify(res, timeout)
	report, ok := harness.ParseMarkers(res.Stdout, sentinels)
	if !ok && procFailure == nil {
		procFailure = fail(RuntimeError, "program reported no test results")
	}
	if ok {
		err := report.Consistent()
		if err == nil && report.Summary && report.Total != len(cases) {
			err = fmt.Errorf("%w: %d cases reported, %d submitted", harness.ErrInconsistentReport, report.Total, len(cases))
		}
		if err != nil {
			j.log.Warn().Err(err).Msg("discarding test report")
			ok = false
			procFailure = fail(RuntimeError, err.Error())
		}
	}

	share := res.Duration / time.Duration(max(1, len(cases)))
	for i := range out.Results {
		r := &out.Results[i]
		r.Runtime = share
		if ok {
			if m, found := report.Case(harness.CaseID(i)); found {
				r.Passed = m.Passed
				r.Expected = m.Expected
				r.Actual = truncate(m.Actual, e.conf.MaxOutputBytes)
				if r.Passed {
					out.Passed++
				}
				continue
			}
		}
		r.Failure = procFailure
		if r.Failure == nil {
			r.Failure = fail(RuntimeError, "no result reported for this test case")
		}
	}
}

// failSetup reports a compilation failure once, shared by every case, or an
// internal failure for the whole request.
func (e *Executor) failSetup(out *RunOutcome, f *Failure) {
	if f.Kind == CompilationError {
		out.CompilationError = f.Message
		out.failAll(f)
		return
	}
	e.failRequest(out, f)
}

func (e *Executor) failRequest(out *RunOutcome, f *Failure) {
	out.Failure = f
	out.failAll(f)
}
