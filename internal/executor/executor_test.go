package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itstheanurag/judgexec/internal/config"
	"github.com/itstheanurag/judgexec/internal/harness"
	"github.com/itstheanurag/judgexec/internal/languages"
	"github.com/itstheanurag/judgexec/internal/sandbox"
)

// fakeSandbox answers invocations from a script and records them.
type fakeSandbox struct {
	mu     sync.Mutex
	calls  []sandbox.Invocation
	handle func(inv sandbox.Invocation) (*sandbox.Result, error)
}

func (f *fakeSandbox) Exec(_ context.Context, inv sandbox.Invocation) (*sandbox.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	return f.handle(inv)
}

func (f *fakeSandbox) EnsureImage(context.Context, string) error { return nil }

func (f *fakeSandbox) count(phase string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if isCompile(c) == (phase == "compile") {
			n++
		}
	}
	return n
}

func isCompile(inv sandbox.Invocation) bool {
	return inv.Cmd[0] == "g++"
}

func testConfig(t *testing.T) config.SandboxConfig {
	t.Helper()
	return config.SandboxConfig{
		ScratchRoot:    t.TempDir(),
		MemoryMB:       256,
		MaxMemoryMB:    512,
		NanoCPUs:       1e9,
		PidsLimit:      64,
		CompileTimeout: 10 * time.Second,
		RunTimeout:     2 * time.Second,
		MaxRunTimeout:  5 * time.Second,
		MaxSourceBytes: 4096,
		MaxOutputBytes: 1024,
		MaxTestCases:   10,
		User:           "65534:65534",
	}
}

const testNonce = "feedc0de"

func newTestExecutor(t *testing.T, conf config.SandboxConfig, handle func(sandbox.Invocation) (*sandbox.Result, error)) (*Executor, *fakeSandbox) {
	t.Helper()
	logger := zerolog.Nop()
	fake := &fakeSandbox{handle: handle}
	exec := NewExecutor(conf, fake, &logger)
	exec.newNonce = func() string { return testNonce }
	return exec, fake
}

func assertScratchClean(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directories left behind")
}

func readStdin(t *testing.T, inv sandbox.Invocation) string {
	t.Helper()
	if inv.StdinFile == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(inv.HostDir, inv.StdinFile))
	require.NoError(t, err)
	return string(data)
}

const twoSumCPP = `class Solution {
public:
    vector<int> twoSum(vector<int>& nums, int target) {
        return {0, 1};
    }
};
`

func TestRunTestsCompilesOnceAndRunsEachCase(t *testing.T) {
	conf := testConfig(t)
	var inputs []string
	var mu sync.Mutex
	exec, fake := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		if isCompile(inv) {
			src, err := os.ReadFile(filepath.Join(inv.HostDir, "solution.cpp"))
			require.NoError(t, err)
			assert.Contains(t, string(src), "drv_solution.twoSum(nums, target)")
			return &sandbox.Result{}, nil
		}
		mu.Lock()
		inputs = append(inputs, readStdin(t, inv))
		mu.Unlock()
		return &sandbox.Result{Stdout: "[0,1]\n", Duration: 10 * time.Millisecond}, nil
	})

	out := exec.RunTests(context.Background(), Request{
		Language: "cpp",
		Source:   twoSumCPP,
		TestCases: []TestInput{
			{ID: "a", Input: "[2,7,11,15]\n9", Expected: "[0,1]"},
			{ID: "b", Input: "[3,2,4]\n6", Expected: "[1,2]"},
		},
	})

	require.NotNil(t, out)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, "cpp", out.Language)
	assert.Equal(t, 1, out.Passed)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 20*time.Millisecond, out.Runtime)
	assert.Nil(t, out.Failure)

	assert.Equal(t, 1, fake.count("compile"))
	assert.Equal(t, 2, fake.count("run"))
	assert.Equal(t, []string{"[2,7,11,15]\n9\n", "[3,2,4]\n6\n"}, inputs)

	require.Len(t, out.Results, 2)
	assert.True(t, out.Results[0].Passed)
	assert.Equal(t, "[2,7,11,15], 9", out.Results[0].DisplayInput)
	assert.False(t, out.Results[1].Passed)
	assert.Nil(t, out.Results[1].Failure)
	assert.Equal(t, "[0,1]", out.Results[1].Actual)
	assert.Equal(t, "[1,2]", out.Results[1].Expected)

	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsCompilationFailureFansOut(t *testing.T) {
	conf := testConfig(t)
	exec, fake := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		return &sandbox.Result{ExitCode: 1, Stderr: "solution.cpp:3:5: error: expected ';'\n"}, nil
	})

	out := exec.RunTests(context.Background(), Request{
		Language:  "c++",
		Source:    "int main() { return 0 }",
		TestCases: []TestInput{{Input: "1", Expected: "1"}, {Input: "2", Expected: "2"}, {Input: "3", Expected: "3"}},
	})

	assert.Equal(t, 0, out.Passed)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, "solution.cpp:3:5: error: expected ';'", out.CompilationError)
	assert.Nil(t, out.Failure)
	for _, r := range out.Results {
		require.NotNil(t, r.Failure)
		assert.Equal(t, CompilationError, r.Failure.Kind)
		assert.Equal(t, out.CompilationError, r.Failure.Message)
		assert.Same(t, out.Results[0].Failure, r.Failure)
	}
	assert.Equal(t, 0, fake.count("run"))
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsClassifiesEachCaseIndependently(t *testing.T) {
	conf := testConfig(t)
	exec, fake := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		switch strings.TrimSpace(readStdin(t, inv)) {
		case "slow":
			return &sandbox.Result{TimedOut: true, ExitCode: 137}, nil
		case "hungry":
			return &sandbox.Result{OOMKilled: true, ExitCode: 137}, nil
		case "killed":
			return &sandbox.Result{ExitCode: 137}, nil
		case "crash":
			return &sandbox.Result{ExitCode: 1, Stderr: "Traceback: boom\n"}, nil
		}
		return &sandbox.Result{Stdout: "ok\n"}, nil
	})

	out := exec.RunTests(context.Background(), Request{
		Language: "python",
		Source:   "print(input())",
		TestCases: []TestInput{
			{Input: "slow", Expected: "ok"},
			{Input: "hungry", Expected: "ok"},
			{Input: "killed", Expected: "ok"},
			{Input: "crash", Expected: "ok"},
			{Input: "fine", Expected: "ok"},
		},
	})

	assert.Equal(t, 0, fake.count("compile"))
	assert.Equal(t, 5, fake.count("run"))
	assert.Equal(t, TimeLimitExceeded, out.Results[0].Failure.Kind)
	assert.Equal(t, MemoryLimitExceeded, out.Results[1].Failure.Kind)
	assert.Equal(t, MemoryLimitExceeded, out.Results[2].Failure.Kind)
	assert.Equal(t, RuntimeError, out.Results[3].Failure.Kind)
	assert.Equal(t, "Traceback: boom", out.Results[3].Failure.Message)
	assert.True(t, out.Results[4].Passed)
	assert.Nil(t, out.Results[4].Failure)
	assert.Equal(t, 1, out.Passed)
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsStopOnFailureSkipsRemaining(t *testing.T) {
	conf := testConfig(t)
	exec, fake := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		return &sandbox.Result{Stdout: "wrong"}, nil
	})

	out := exec.RunTests(context.Background(), Request{
		Language:      "javascript",
		Source:        "console.log('wrong')",
		StopOnFailure: true,
		TestCases:     []TestInput{{Input: "1", Expected: "1"}, {Input: "2", Expected: "2"}, {Input: "3", Expected: "3"}},
	})

	assert.Equal(t, 1, fake.count("run"))
	assert.Nil(t, out.Results[0].Failure)
	for _, r := range out.Results[1:] {
		require.NotNil(t, r.Failure)
		assert.Equal(t, Skipped, r.Failure.Kind)
	}
}

func TestRunTestsRejectsBeforeSandbox(t *testing.T) {
	conf := testConfig(t)
	exec, fake := newTestExecutor(t, conf, func(sandbox.Invocation) (*sandbox.Result, error) {
		t.Fatal("sandbox must not be called")
		return nil, nil
	})

	out := exec.RunTests(context.Background(), Request{
		Language:  "cobol",
		Source:    "DISPLAY 'HI'.",
		TestCases: []TestInput{{Input: "", Expected: "HI"}},
	})
	require.NotNil(t, out.Failure)
	assert.Equal(t, UnsupportedLanguage, out.Failure.Kind)
	require.Len(t, out.Results, 1)
	assert.Equal(t, UnsupportedLanguage, out.Results[0].Failure.Kind)

	out = exec.RunTests(context.Background(), Request{
		Language: "python",
		Source:   strings.Repeat("x", conf.MaxSourceBytes+1),
	})
	require.NotNil(t, out.Failure)
	assert.Equal(t, InputTooLarge, out.Failure.Kind)

	res := exec.Execute(context.Background(), Request{Language: "rust", Source: "fn main() {}"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, UnsupportedLanguage, res.Failure.Kind)

	assert.Empty(t, fake.calls)
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsInfrastructureFailuresAreInternal(t *testing.T) {
	conf := testConfig(t)
	exec, _ := newTestExecutor(t, conf, func(sandbox.Invocation) (*sandbox.Result, error) {
		return nil, errors.New("cannot connect to the docker daemon")
	})

	out := exec.RunTests(context.Background(), Request{
		Language:  "cpp",
		Source:    twoSumCPP,
		TestCases: []TestInput{{Input: "[1]\n1", Expected: "[]"}},
	})
	require.NotNil(t, out.Failure)
	assert.Equal(t, InternalError, out.Failure.Kind)
	assert.Equal(t, "internal error", out.Failure.Message)
	assert.Empty(t, out.CompilationError)
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsRecoversFromPanics(t *testing.T) {
	conf := testConfig(t)
	exec, _ := newTestExecutor(t, conf, func(sandbox.Invocation) (*sandbox.Result, error) {
		panic("unexpected")
	})

	out := exec.RunTests(context.Background(), Request{
		Language:  "python",
		Source:    "print(1)",
		TestCases: []TestInput{{Input: "", Expected: "1"}},
	})
	require.NotNil(t, out.Failure)
	assert.Equal(t, InternalError, out.Failure.Kind)
	assert.Equal(t, InternalError, out.Results[0].Failure.Kind)
	assertScratchClean(t, conf.ScratchRoot)

	res := exec.Execute(context.Background(), Request{Language: "python", Source: "print(1)"})
	require.NotNil(t, res.Failure)
	assert.Equal(t, InternalError, res.Failure.Kind)
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsLiteralMode(t *testing.T) {
	conf := testConfig(t)
	exec, fake := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		assert.Empty(t, inv.StdinFile)
		assert.Equal(t, 2*conf.RunTimeout, inv.Timeout)
		src, err := os.ReadFile(filepath.Join(inv.HostDir, "solution.py"))
		require.NoError(t, err)
		assert.Contains(t, string(src), "Solution().twoSum([2, 7, 11, 15], 9)")
		assert.Contains(t, string(src), "__JUDGE_CASE__"+testNonce)
		return &sandbox.Result{
			Stdout: "debug line\n" +
				"__JUDGE_CASE__feedc0de|~|0|~|PASSED|~|[2,7,11,15], 9|~|[0,1]|~|[0,1]\n" +
				"__JUDGE_CASE__feedc0de|~|1|~|FAILED|~|[3,3], 6|~|[0,1]|~|[1,0]\n" +
				"__JUDGE_SUMMARY__feedc0de|~|1|~|2\n",
			Duration: 40 * time.Millisecond,
		}, nil
	})

	contract, err := harness.NewContract("twoSum", "int[]", []harness.ParamSpec{
		{Name: "nums", Type: "int[]"},
		{Name: "target", Type: "int"},
	}, true)
	require.NoError(t, err)

	out := exec.RunTests(context.Background(), Request{
		Language: "python",
		Source:   "class Solution:\n    def twoSum(self, nums, target):\n        return [0, 1]\n",
		Function: contract,
		TestCases: []TestInput{
			{ID: "x", Input: "[2,7,11,15]\n9", Expected: "[0,1]"},
			{ID: "y", Input: "[3,3]\n6", Expected: "[0, 1]"},
		},
	})

	assert.Equal(t, 1, fake.count("run"))
	assert.Nil(t, out.Failure)
	assert.Equal(t, 1, out.Passed)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 40*time.Millisecond, out.Runtime)
	assert.True(t, out.Results[0].Passed)
	assert.Equal(t, "x", out.Results[0].ID)
	assert.False(t, out.Results[1].Passed)
	assert.Equal(t, "[1,0]", out.Results[1].Actual)
	assert.Equal(t, "[0,1]", out.Results[1].Expected)
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsLiteralModeWithoutMarkers(t *testing.T) {
	conf := testConfig(t)
	exec, _ := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		return &sandbox.Result{Stdout: "nothing to see\n"}, nil
	})
	contract, err := harness.NewContract("f", "int", []harness.ParamSpec{{Name: "n", Type: "int"}}, false)
	require.NoError(t, err)

	out := exec.RunTests(context.Background(), Request{
		Language:  "js",
		Source:    "function f(n) { return n; }",
		Function:  contract,
		TestCases: []TestInput{{Input: "1", Expected: "1"}},
	})
	assert.Equal(t, 0, out.Passed)
	require.NotNil(t, out.Results[0].Failure)
	assert.Equal(t, RuntimeError, out.Results[0].Failure.Kind)
	assert.Equal(t, "program reported no test results", out.Results[0].Failure.Message)

	exec, _ = newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		return &sandbox.Result{TimedOut: true, ExitCode: 137}, nil
	})
	out = exec.RunTests(context.Background(), Request{
		Language:  "js",
		Source:    "function f(n) { while (true) {} }",
		Function:  contract,
		TestCases: []TestInput{{Input: "1", Expected: "1"}},
	})
	assert.Equal(t, TimeLimitExceeded, out.Results[0].Failure.Kind)
}

func TestRunTestsLiteralModeRejectsForgedMarkers(t *testing.T) {
	conf := testConfig(t)
	contract, err := harness.NewContract("f", "int", []harness.ParamSpec{{Name: "n", Type: "int"}}, false)
	require.NoError(t, err)
	reported := "__JUDGE_CASE__feedc0de|~|0|~|FAILED|~|1|~|1|~|2\n"
	summary := "__JUDGE_SUMMARY__feedc0de|~|0|~|1\n"

	cases := []struct {
		name   string
		stdout string
		kind   ErrorKind
	}{
		{
			name:   "marker without the request sentinel",
			stdout: "__JUDGE_CASE__|~|0|~|PASSED|~|1|~|1|~|1\n__JUDGE_SUMMARY__|~|1|~|1\n" + reported + summary,
		},
		{
			name:   "forged marker before the real one",
			stdout: "__JUDGE_CASE__feedc0de|~|0|~|PASSED|~|1|~|1|~|1\n" + reported + summary,
			kind:   RuntimeError,
		},
		{
			name:   "forged marker after the summary",
			stdout: reported + summary + "__JUDGE_CASE__feedc0de|~|0|~|PASSED|~|1|~|1|~|1\n",
			kind:   RuntimeError,
		},
		{
			name:   "forged summary",
			stdout: reported + summary + "__JUDGE_SUMMARY__feedc0de|~|1|~|1\n",
			kind:   RuntimeError,
		},
		{
			name:   "summary for a different case count",
			stdout: reported + "__JUDGE_CASE__feedc0de|~|1|~|PASSED|~|1|~|1|~|1\n__JUDGE_SUMMARY__feedc0de|~|1|~|2\n",
			kind:   RuntimeError,
		},
	}
	for _, c := range cases {
		exec, _ := newTestExecutor(t, conf, func(sandbox.Invocation) (*sandbox.Result, error) {
			return &sandbox.Result{Stdout: c.stdout}, nil
		})
		out := exec.RunTests(context.Background(), Request{
			Language:  "python",
			Source:    "def f(n):\n    return 2\n",
			Function:  contract,
			TestCases: []TestInput{{Input: "1", Expected: "1"}},
		})

		assert.Equal(t, 0, out.Passed, c.name)
		assert.False(t, out.Results[0].Passed, c.name)
		if c.kind == "" {
			assert.Nil(t, out.Results[0].Failure, c.name)
			assert.Equal(t, "2", out.Results[0].Actual, c.name)
			continue
		}
		require.NotNil(t, out.Results[0].Failure, c.name)
		assert.Equal(t, c.kind, out.Results[0].Failure.Kind, c.name)
		assert.Contains(t, out.Results[0].Failure.Message, "inconsistent test report", c.name)
	}
	assertScratchClean(t, conf.ScratchRoot)
}

func TestRunTestsLiteralModeRejectsBadCases(t *testing.T) {
	conf := testConfig(t)
	exec, fake := newTestExecutor(t, conf, func(sandbox.Invocation) (*sandbox.Result, error) {
		return &sandbox.Result{}, nil
	})
	contract, err := harness.NewContract("f", "int", []harness.ParamSpec{{Name: "n", Type: "int"}}, false)
	require.NoError(t, err)

	out := exec.RunTests(context.Background(), Request{
		Language:  "python",
		Source:    "def f(n):\n    return n\n",
		Function:  contract,
		TestCases: []TestInput{{Input: "not a number", Expected: "1"}},
	})
	require.NotNil(t, out.Failure)
	assert.Equal(t, InvalidRequest, out.Failure.Kind)
	assert.Empty(t, fake.calls)
}

func TestExecuteSingleRun(t *testing.T) {
	conf := testConfig(t)
	conf.MaxOutputBytes = 8
	exec, _ := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		assert.Equal(t, "hello\n", readStdin(t, inv))
		assert.Equal(t, int64(300)<<20, inv.Limits.MemoryBytes)
		assert.Equal(t, conf.MaxRunTimeout, inv.Timeout)
		return &sandbox.Result{Stdout: "hello hello hello", Duration: 5 * time.Millisecond}, nil
	})

	res := exec.Execute(context.Background(), Request{
		Language:      "python",
		Source:        "print(input() * 3)",
		Stdin:         "hello",
		TimeLimit:     time.Hour,
		MemoryLimitMB: 300,
	})
	assert.True(t, res.Success())
	assert.Equal(t, "hello he"+truncatedSuffix, res.Stdout)
	assert.Equal(t, 5*time.Millisecond, res.Runtime)
	assertScratchClean(t, conf.ScratchRoot)
}

func TestExecuteCompilationError(t *testing.T) {
	conf := testConfig(t)
	exec, _ := newTestExecutor(t, conf, func(inv sandbox.Invocation) (*sandbox.Result, error) {
		return &sandbox.Result{TimedOut: true}, nil
	})

	res := exec.Execute(context.Background(), Request{Language: "cpp", Source: twoSumCPP})
	require.NotNil(t, res.Failure)
	assert.Equal(t, CompilationError, res.Failure.Kind)
	assert.Contains(t, res.Stderr, "compilation timed out")
	assertScratchClean(t, conf.ScratchRoot)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab"+truncatedSuffix, truncate("abc", 2))
	assert.Equal(t, "a"+truncatedSuffix, truncate("aé", 2))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func TestFailureMatchesSentinels(t *testing.T) {
	assert.ErrorIs(t, fail(InputTooLarge, "source too large"), ErrInputTooLarge)
	assert.ErrorIs(t, fail(InvalidRequest, "bad case"), ErrInvalidRequest)
	assert.ErrorIs(t, fail(UnsupportedLanguage, "rust"), languages.ErrUnsupportedLanguage)
	assert.NotErrorIs(t, fail(RuntimeError, "boom"), ErrInvalidRequest)
}
