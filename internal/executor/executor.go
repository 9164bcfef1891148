package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itstheanurag/judgexec/internal/config"
	"github.com/itstheanurag/judgexec/internal/driver"
	"github.com/itstheanurag/judgexec/internal/languages"
	"github.com/itstheanurag/judgexec/internal/metrics"
	"github.com/itstheanurag/judgexec/internal/sandbox"
)

// Executor is the sandbox orchestrator. It holds no per-request state; every
// request owns its scratch directory and containers.
type Executor struct {
	conf    config.SandboxConfig
	sandbox sandbox.Sandbox
	logger  *zerolog.Logger

	// newNonce salts the marker sentinels of each literal mode run.
	newNonce func() string
}

func NewExecutor(conf config.SandboxConfig, sb sandbox.Sandbox, logger *zerolog.Logger) *Executor {
	return &Executor{
		conf:     conf,
		sandbox:  sb,
		logger:   logger,
		newNonce: randomNonce,
	}
}

func randomNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// job is the admitted form of a request.
type job struct {
	req       Request
	lang      languages.Language
	toolchain languages.Toolchain
	timeout   time.Duration
	memoryMB  int
	dir       string
	log       zerolog.Logger
}

// admit rejects requests that must never reach the sandbox.
func (e *Executor) admit(req Request) (*job, *Failure) {
	lang, err := languages.Parse(req.Language)
	if err != nil {
		return nil, fail(UnsupportedLanguage, err.Error())
	}
	if len(req.Source) > e.conf.MaxSourceBytes {
		return nil, fail(InputTooLarge, fmt.Sprintf("source is %d bytes, limit is %d", len(req.Source), e.conf.MaxSourceBytes))
	}
	if len(req.Stdin) > e.conf.MaxSourceBytes {
		return nil, fail(InputTooLarge, fmt.Sprintf("stdin is %d bytes, limit is %d", len(req.Stdin), e.conf.MaxSourceBytes))
	}
	if e.conf.MaxTestCases > 0 && len(req.TestCases) > e.conf.MaxTestCases {
		return nil, fail(InputTooLarge, fmt.Sprintf("%d test cases, limit is %d", len(req.TestCases), e.conf.MaxTestCases))
	}
	for i, tc := range req.TestCases {
		if len(tc.Input)+len(tc.Expected) > e.conf.MaxSourceBytes {
			return nil, fail(InputTooLarge, fmt.Sprintf("test case %d exceeds %d bytes", i, e.conf.MaxSourceBytes))
		}
	}
	if req.Function != nil {
		if err := req.Function.Validate(); err != nil {
			return nil, fail(InvalidRequest, err.Error())
		}
	}

	j := &job{
		req:       req,
		lang:      lang,
		toolchain: lang.Toolchain(),
		timeout:   clampDuration(req.TimeLimit, e.conf.RunTimeout, e.conf.MaxRunTimeout),
		memoryMB:  clampInt(req.MemoryLimitMB, e.conf.MemoryMB, e.conf.MaxMemoryMB),
	}
	j.log = e.logger.With().Str("request_id", req.ID).Str("language", lang.String()).Logger()
	return j, nil
}

func clampDuration(v, def, limit time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return min(v, limit)
}

func clampInt(v, def, limit int) int {
	if v <= 0 {
		return def
	}
	return min(v, limit)
}

func withID(req Request) Request {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req
}

// Execute compiles and runs the source once with req.Stdin. It never returns
// nil.
func (e *Executor) Execute(ctx context.Context, req Request) (res *ExecutionResult) {
	req = withID(req)
	res = &ExecutionResult{RequestID: req.ID, Language: req.Language}

	start := time.Now()
	label := ""
	metrics.ActiveExecutions.Inc()
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error().Str("request_id", req.ID).Interface("panic", p).Msg("execution panicked")
			res.Failure = fail(InternalError, internalMessage)
		}
		metrics.ActiveExecutions.Dec()
		e.observe(label, res.Status(), time.Since(start))
	}()

	j, f := e.admit(req)
	if f != nil {
		res.Failure = f
		return res
	}
	label = j.lang.String()
	res.Language = label

	cleanup, f := e.setup(ctx, j, e.stdinProgram(j))
	defer cleanup()
	if f != nil {
		res.Failure = f
		if f.Kind == CompilationError {
			res.Stderr = f.Message
		}
		return res
	}

	run, err := e.run(ctx, j, "stdin.txt", req.Stdin, j.timeout)
	if err != nil {
		j.log.Error().Err(err).Msg("run failed")
		res.Failure = fail(InternalError, internalMessage)
		return res
	}

	res.Stdout = truncate(run.Stdout, e.conf.MaxOutputBytes)
	res.Stderr = truncate(run.Stderr, e.conf.MaxOutputBytes)
	res.ExitCode = run.ExitCode
	res.Runtime = run.Duration
	res.MemoryBytes = run.MemoryBytes
	res.Failure = e.classify(run, j.timeout)

	j.log.Info().Dur("runtime", res.Runtime).Bool("success", res.Success()).Msg("execution finished")
	return res
}

// RunTests grades every test case of req. Stdin-driven requests run each case
// in its own container against one compiled artifact; requests carrying a
// function contract run a single self checking program. It never returns nil.
func (e *Executor) RunTests(ctx context.Context, req Request) (out *RunOutcome) {
	req = withID(req)
	out = newOutcome(req)

	start := time.Now()
	label := ""
	metrics.ActiveExecutions.Inc()
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error().Str("request_id", req.ID).Interface("panic", p).Msg("test run panicked")
			out.Failure = fail(InternalError, internalMessage)
			out.failAll(out.Failure)
		}
		metrics.ActiveExecutions.Dec()
		e.observe(label, out.Status(), time.Since(start))
	}()

	j, f := e.admit(req)
	if f != nil {
		out.Failure = f
		out.failAll(f)
		return out
	}
	label = j.lang.String()
	out.Language = label

	if req.Function != nil {
		e.runLiteral(ctx, j, out)
	} else {
		e.runStdin(ctx, j, out)
	}

	for _, r := range out.Results {
		metrics.TestCaseVerdicts.WithLabelValues(out.Language, verdictOf(r)).Inc()
	}
	j.log.Info().
		Int("passed", out.Passed).
		Int("total", out.Total).
		Dur("runtime", out.Runtime).
		Msg("test run finished")
	return out
}

func (e *Executor) stdinProgram(j *job) string {
	if j.lang == languages.CPP {
		return driver.Synthesize(j.req.Source)
	}
	return j.req.Source
}

// setup creates the scratch directory, writes the program and compiles it
// once. The returned cleanup removes the directory and must always be called.
func (e *Executor) setup(ctx context.Context, j *job, program string) (func(), *Failure) {
	dir, err := e.scratchDir()
	if err != nil {
		j.log.Error().Err(err).Msg("failed to create scratch directory")
		return func() {}, fail(InternalError, internalMessage)
	}
	j.dir = dir
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			j.log.Warn().Err(err).Str("dir", dir).Msg("failed to remove scratch directory")
		}
	}

	if err := os.WriteFile(filepath.Join(dir, j.toolchain.SourceFile), []byte(program), 0o644); err != nil {
		j.log.Error().Err(err).Msg("failed to write source")
		return cleanup, fail(InternalError, internalMessage)
	}

	f, err := e.compile(ctx, j)
	if err != nil {
		j.log.Error().Err(err).Msg("compile invocation failed")
		return cleanup, fail(InternalError, internalMessage)
	}
	return cleanup, f
}

func (e *Executor) scratchDir() (string, error) {
	if err := os.MkdirAll(e.conf.ScratchRoot, 0o755); err != nil {
		return "", err
	}
	dir := filepath.Join(e.conf.ScratchRoot, "judgexec-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", err
	}
	// The container user is unprivileged and has to write build artifacts.
	if err := os.Chmod(dir, 0o777); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

func (e *Executor) compile(ctx context.Context, j *job) (*Failure, error) {
	if !j.toolchain.Compiled() {
		return nil, nil
	}

	res, err := e.invoke(ctx, j, "compile", sandbox.Invocation{
		Image:   j.toolchain.Image,
		Cmd:     j.toolchain.CompileCommand,
		HostDir: j.dir,
		Timeout: e.conf.CompileTimeout,
		Limits: sandbox.Limits{
			MemoryBytes: int64(e.conf.MaxMemoryMB) << 20,
			NanoCPUs:    e.conf.NanoCPUs,
			PidsLimit:   e.conf.PidsLimit,
		},
		User:           e.conf.User,
		MaxOutputBytes: e.conf.MaxOutputBytes,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case res.TimedOut:
		return fail(CompilationError, fmt.Sprintf("compilation timed out after %s", e.conf.CompileTimeout)), nil
	case res.ExitCode != 0:
		msg := strings.TrimSpace(res.Stderr)
		if msg == "" {
			msg = strings.TrimSpace(res.Stdout)
		}
		if msg == "" {
			msg = fmt.Sprintf("compiler exited with code %d", res.ExitCode)
		}
		return fail(CompilationError, truncate(msg, e.conf.MaxOutputBytes)), nil
	}
	return nil, nil
}

// run executes the compiled program once. input, when not empty, is written
// to file and fed to stdin.
func (e *Executor) run(ctx context.Context, j *job, file, input string, timeout time.Duration) (*sandbox.Result, error) {
	inv := sandbox.Invocation{
		Image:   j.toolchain.Image,
		Cmd:     j.toolchain.RunCommand,
		HostDir: j.dir,
		Timeout: timeout,
		Limits: sandbox.Limits{
			MemoryBytes: int64(j.memoryMB) << 20,
			NanoCPUs:    e.conf.NanoCPUs,
			PidsLimit:   e.conf.PidsLimit,
		},
		User:           e.conf.User,
		MaxOutputBytes: e.conf.MaxOutputBytes,
	}
	if input != "" {
		if !strings.HasSuffix(input, "\n") {
			input += "\n"
		}
		if err := os.WriteFile(filepath.Join(j.dir, file), []byte(input), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file, err)
		}
		inv.StdinFile = file
	}
	return e.invoke(ctx, j, "run", inv)
}

func (e *Executor) invoke(ctx context.Context, j *job, phase string, inv sandbox.Invocation) (*sandbox.Result, error) {
	start := time.Now()
	res, err := e.sandbox.Exec(ctx, inv)
	elapsed := time.Since(start)
	metrics.ContainerInvocationTime.WithLabelValues(phase).Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		return nil, err
	}
	metrics.ExecutionDuration.WithLabelValues(j.lang.String(), phase).Observe(float64(res.Duration.Milliseconds()))
	if res.MemoryBytes > 0 {
		metrics.MemoryUsage.WithLabelValues(j.lang.String()).Observe(float64(res.MemoryBytes >> 10))
	}
	j.log.Debug().
		Str("phase", phase).
		Int("exit_code", res.ExitCode).
		Dur("elapsed", elapsed).
		Msg("container invocation finished")
	return res, nil
}

// classify maps how a run ended to a failure, or nil for a normal exit.
func (e *Executor) classify(res *sandbox.Result, timeout time.Duration) *Failure {
	switch {
	case res.TimedOut:
		return fail(TimeLimitExceeded, fmt.Sprintf("time limit of %s exceeded", timeout))
	case res.OOMKilled || res.ExitCode == 137:
		return fail(MemoryLimitExceeded, "memory limit exceeded")
	case res.ExitCode != 0:
		msg := truncate(strings.TrimSpace(res.Stderr), e.conf.MaxOutputBytes)
		if msg == "" {
			msg = fmt.Sprintf("exited with code %d", res.ExitCode)
		}
		return fail(RuntimeError, msg)
	}
	return nil
}

func outputMatches(stdout, expected string) bool {
	return normalize(stdout) == normalize(expected)
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
}

func (e *Executor) observe(language, status string, elapsed time.Duration) {
	if language == "" {
		language = "unknown"
	}
	metrics.ExecutionsTotal.WithLabelValues(language, status).Inc()
	metrics.ExecutionDuration.WithLabelValues(language, "total").Observe(float64(elapsed.Milliseconds()))
}

func statusOf(f *Failure, passed bool) string {
	switch {
	case f != nil:
		return string(f.Kind)
	case passed:
		return "accepted"
	}
	return "rejected"
}

func verdictOf(r TestCaseResult) string {
	switch {
	case r.Passed:
		return "passed"
	case r.Failure != nil:
		return string(r.Failure.Kind)
	}
	return "wrong_answer"
}
