package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/itstheanurag/judgexec/internal/codegen"
	"github.com/itstheanurag/judgexec/internal/signature"
)

const jsHelpers = `function jhFormat(v, nested) {
    if (typeof v === "boolean") return v ? "true" : "false";
    if (v === null || v === undefined) return "null";
    if (Array.isArray(v)) return "[" + v.map((x) => jhFormat(x, true)).join(",") + "]";
    if (typeof v === "string") return nested ? "\"" + v + "\"" : v;
    return String(v);
}

function jhEqual(a, b, approx) {
    if (b === null) return a === null || a === undefined;
    if (Array.isArray(b)) {
        return Array.isArray(a) && a.length === b.length && a.every((x, i) => jhEqual(x, b[i], approx));
    }
    if (approx && typeof a === "number" && typeof b === "number") {
        return Math.abs(a - b) <= 1e-6 * Math.max(1, Math.abs(b));
    }
    return a === b;
}`

func jsReport(s Sentinels) string {
	return `function jhReport(id, ok, input, expected, actual) {
    const line = ["` + s.Case + `", id, ok ? "` + StatusPassed + `" : "` + StatusFailed + `", input, expected, actual].join("` + Delimiter + `");
    console.log(line.replace(/[\r\n]/g, " "));
}`
}

type jsBackend struct {
	s Sentinels
}

func (be jsBackend) prelude(b *codegen.Builder, source string, _ *Contract) error {
	b.Raw(strings.TrimRight(source, "\n"))
	b.Blank()
	b.Raw(jsHelpers)
	b.Blank()
	b.Raw(jsReport(be.s))
	b.Blank()
	b.Line("let jhPassed = 0;")
	return nil
}

func (be jsBackend) testCase(b *codegen.Builder, c *Contract, index int, tc TestCase) {
	args := make([]string, len(c.Params))
	for i, p := range c.Params {
		args[i] = be.literal(p.Type, tc.Args[i])
	}
	target := c.Name
	if c.Method {
		target = "new " + signature.SolutionType + "()." + c.Name
	}
	approx := c.Return.Base().Kind == signature.Double

	b.Line("{").Indent()
	b.Line("const jhExpected = %s;", be.literal(c.Return, tc.Expected))
	b.Line("let jhOk = false;")
	b.Line(`let jhActualText = "";`)
	b.Line("try {").Indent()
	b.Line("const jhActual = %s(%s);", target, strings.Join(args, ", "))
	b.Line("jhOk = jhEqual(jhActual, jhExpected, %t);", approx)
	b.Line("jhActualText = jhFormat(jhActual, false);")
	b.Dedent().Line("} catch (jhErr) {").Indent()
	b.Line(`jhActualText = "exception: " + (jhErr && jhErr.message ? jhErr.message : String(jhErr));`)
	b.Dedent().Line("}")
	b.Line("if (jhOk) jhPassed++;")
	b.Line("jhReport(%s, jhOk, %s, jhFormat(jhExpected, false), jhActualText);",
		codegen.QuoteJS(CaseID(index)), codegen.QuoteJS(markerText(tc.DisplayInput)))
	b.Dedent().Line("}")
}

func (be jsBackend) epilogue(b *codegen.Builder, total int) {
	b.Line(`console.log("%s%s" + jhPassed + "%s%d");`, be.s.Summary, Delimiter, Delimiter, total)
}

func (be jsBackend) literal(t signature.Type, v any) string {
	switch t.Kind {
	case signature.Void:
		return "null"
	case signature.Int, signature.Long:
		return strconv.FormatInt(v.(int64), 10)
	case signature.Double:
		return floatText(v.(float64))
	case signature.Bool:
		return strconv.FormatBool(v.(bool))
	case signature.Char:
		return codegen.QuoteJS(string(v.(rune)))
	case signature.String:
		return codegen.QuoteJS(v.(string))
	case signature.Array:
		return "[" + joinLiterals(v.([]any), *t.Elem, be.literal) + "]"
	}
	panic(fmt.Sprintf("harness: no JavaScript literal for %s", t))
}
