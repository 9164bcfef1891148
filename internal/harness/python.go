package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itstheanurag/judgexec/internal/codegen"
	"github.com/itstheanurag/judgexec/internal/signature"
)

const pythonHelpers = `import math as _jh_math


def _jh_format(v, nested=False):
    if isinstance(v, bool):
        return "true" if v else "false"
    if v is None:
        return "null"
    if isinstance(v, (list, tuple)):
        return "[" + ",".join(_jh_format(x, True) for x in v) + "]"
    if isinstance(v, str):
        return '"' + v + '"' if nested else v
    if isinstance(v, float):
        return format(v, "g")
    return str(v)


def _jh_equal(a, b):
    if isinstance(b, list):
        return isinstance(a, (list, tuple)) and len(a) == len(b) and all(_jh_equal(x, y) for x, y in zip(a, b))
    if isinstance(a, bool) or isinstance(b, bool):
        return a is b
    if isinstance(b, float) and isinstance(a, (int, float)):
        return _jh_math.isclose(a, b, rel_tol=1e-6, abs_tol=1e-6)
    return type(a) is type(b) and a == b`

func pythonReport(s Sentinels) string {
	return `def _jh_report(case_id, ok, shown, expected, actual):
    status = "` + StatusPassed + `" if ok else "` + StatusFailed + `"
    line = "` + Delimiter + `".join(["` + s.Case + `", case_id, status, shown, expected, actual])
    print(line.replace("\n", " ").replace("\r", " "), flush=True)`
}

type pythonBackend struct {
	s Sentinels
}

func (be pythonBackend) prelude(b *codegen.Builder, source string, _ *Contract) error {
	b.Raw(strings.TrimRight(source, "\n"))
	b.Blank().Blank()
	b.Raw(pythonHelpers)
	b.Blank().Blank()
	b.Raw(pythonReport(be.s))
	b.Blank().Blank()
	b.Line("_jh_passed = 0")
	return nil
}

func (be pythonBackend) testCase(b *codegen.Builder, c *Contract, index int, tc TestCase) {
	args := make([]string, len(c.Params))
	for i, p := range c.Params {
		args[i] = be.literal(p.Type, tc.Args[i])
	}
	target := c.Name
	if c.Method {
		target = signature.SolutionType + "()." + c.Name
	}

	b.Line("_jh_expected = %s", be.literal(c.Return, tc.Expected))
	b.Line("try:").Indent()
	b.Line("_jh_actual = %s(%s)", target, strings.Join(args, ", "))
	b.Line("_jh_ok = _jh_equal(_jh_actual, _jh_expected)")
	b.Line("_jh_actual_text = _jh_format(_jh_actual)")
	b.Dedent().Line("except Exception as _jh_err:").Indent()
	b.Line("_jh_ok = False")
	b.Line(`_jh_actual_text = "exception: " + type(_jh_err).__name__ + ": " + str(_jh_err)`)
	b.Dedent().Line("if _jh_ok:").Indent()
	b.Line("_jh_passed += 1")
	b.Dedent()
	b.Line("_jh_report(%s, _jh_ok, %s, _jh_format(_jh_expected), _jh_actual_text)",
		codegen.Quote(CaseID(index)), codegen.Quote(markerText(tc.DisplayInput)))
}

func (be pythonBackend) epilogue(b *codegen.Builder, total int) {
	b.Line(`print("%s%s" + str(_jh_passed) + "%s%d", flush=True)`, be.s.Summary, Delimiter, Delimiter, total)
}

func (be pythonBackend) literal(t signature.Type, v any) string {
	switch t.Kind {
	case signature.Void:
		return "None"
	case signature.Int, signature.Long:
		return strconv.FormatInt(v.(int64), 10)
	case signature.Double:
		return floatText(v.(float64))
	case signature.Bool:
		if v.(bool) {
			return "True"
		}
		return "False"
	case signature.Char:
		return codegen.Quote(string(v.(rune)))
	case signature.String:
		return codegen.Quote(v.(string))
	case signature.Array:
		return "[" + joinLiterals(v.([]any), *t.Elem, be.literal) + "]"
	}
	panic(fmt.Sprintf("harness: no Python literal for %s", t))
}
