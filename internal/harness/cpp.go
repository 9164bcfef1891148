package harness

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/itstheanurag/judgexec/internal/codegen"
	"github.com/itstheanurag/judgexec/internal/driver"
	"github.com/itstheanurag/judgexec/internal/signature"
)

var cppUsingStd = regexp.MustCompile(`using\s+namespace\s+std\s*;`)

const cppHelpers = `static string jh_format(int v, bool = false) { return to_string(v); }
static string jh_format(long long v, bool = false) { return to_string(v); }
static string jh_format(double v, bool = false) { ostringstream os; os << v; return os.str(); }
static string jh_format(bool v, bool = false) { return v ? "true" : "false"; }
static string jh_format(char v, bool nested = false) { return nested ? string("\"") + v + "\"" : string(1, v); }
static string jh_format(const string& v, bool nested = false) { return nested ? "\"" + v + "\"" : v; }
template <typename T>
static string jh_format(const vector<T>& v, bool = false) {
    string out = "[";
    for (size_t i = 0; i < v.size(); i++) {
        if (i > 0) out += ",";
        out += jh_format(static_cast<T>(v[i]), true);
    }
    return out + "]";
}

static bool jh_equal(double a, double b) { return fabs(a - b) <= 1e-6 * fmax(1.0, fabs(b)); }
template <typename T>
static bool jh_equal(const T& a, const T& b) { return a == b; }
template <typename T>
static bool jh_equal(const vector<T>& a, const vector<T>& b) {
    if (a.size() != b.size()) return false;
    for (size_t i = 0; i < a.size(); i++) {
        if (!jh_equal(static_cast<T>(a[i]), static_cast<T>(b[i]))) return false;
    }
    return true;
}

static string jh_clean(string s) {
    for (char& c : s) {
        if (c == '\r' || c == '\n') c = ' ';
    }
    return s;
}
`

// cppReport prints one case line under the request's case sentinel.
func cppReport(s Sentinels) string {
	return `static void jh_report(const string& id, bool ok, const string& input, const string& expected, const string& actual) {
    cout << "` + s.Case + Delimiter + `" << id << "` + Delimiter + `" << (ok ? "` + StatusPassed + `" : "` + StatusFailed + `")
         << "` + Delimiter + `" << jh_clean(input) << "` + Delimiter + `" << jh_clean(expected) << "` + Delimiter + `" << jh_clean(actual) << endl;
}`
}

// cppBackend emits a main that runs each case in its own block scope so that
// parameters bind to lvalues, including by-reference parameters.
type cppBackend struct {
	s Sentinels
}

func (be cppBackend) prelude(b *codegen.Builder, source string, c *Contract) error {
	if driver.HasEntryPoint(source) {
		return ErrEntryPointPresent
	}
	helpers := cppHelpers + "\n" + cppReport(be.s)
	if inc := includes(source, helpers); inc != "" {
		b.Raw(inc)
	}
	if !cppUsingStd.MatchString(source) {
		b.Line("using namespace std;")
	}
	b.Blank()
	b.Raw(strings.TrimRight(source, "\n"))
	b.Blank()
	b.Raw(helpers)
	b.Blank()
	b.Line("int main() {").Indent().Line("int jh_passed = 0;")
	return nil
}

func includes(source, generated string) string {
	missing := driver.MissingIncludes(source, source+"\n"+generated, "iostream", "string", "vector", "sstream", "cmath")
	var sb strings.Builder
	for _, h := range missing {
		sb.WriteString("#include <" + h + ">\n")
	}
	return sb.String()
}

func (be cppBackend) testCase(b *codegen.Builder, c *Contract, index int, tc TestCase) {
	call := fmt.Sprintf("%s(%s)", c.Name, callArgs(c))
	if c.Method {
		call = "jh_solution." + call
	}
	void := c.Return.Kind == signature.Void

	b.Line("{").Indent()
	if !void {
		b.Line("%s jh_expected = %s;", c.Return.Decl(), be.literal(c.Return, tc.Expected))
	}
	b.Line("bool jh_ok = false;")
	b.Line("string jh_actual_text;")
	b.Line("try {").Indent()
	for i, p := range c.Params {
		b.Line("%s %s = %s;", p.Type.Decl(), p.Name, be.literal(p.Type, tc.Args[i]))
	}
	if c.Method {
		b.Line("%s jh_solution;", signature.SolutionType)
	}
	if void {
		b.Line("%s;", call)
		b.Line("jh_ok = true;")
		b.Line("jh_actual_text = %s;", codegen.Quote(driver.VoidOutput))
	} else {
		b.Line("%s jh_actual = %s;", c.Return.Decl(), call)
		b.Line("jh_ok = jh_equal(jh_actual, jh_expected);")
		b.Line("jh_actual_text = jh_format(jh_actual);")
	}
	b.Dedent().Line("} catch (const exception& jh_err) {").Indent()
	b.Line(`jh_actual_text = string("exception: ") + jh_err.what();`)
	b.Dedent().Line("} catch (...) {").Indent()
	b.Line(`jh_actual_text = "exception";`)
	b.Dedent().Line("}")
	b.Line("if (jh_ok) jh_passed++;")
	expected := "jh_format(jh_expected)"
	if void {
		expected = codegen.Quote(driver.VoidOutput)
	}
	b.Line("jh_report(%s, jh_ok, %s, %s, jh_actual_text);",
		codegen.Quote(CaseID(index)), codegen.Quote(markerText(tc.DisplayInput)), expected)
	b.Dedent().Line("}")
}

func (be cppBackend) epilogue(b *codegen.Builder, total int) {
	b.Line(`cout << "%s%s" << jh_passed << "%s" << %d << endl;`, be.s.Summary, Delimiter, Delimiter, total)
	b.Line("return 0;").Dedent().Line("}")
}

func (be cppBackend) literal(t signature.Type, v any) string {
	switch t.Kind {
	case signature.Int:
		return strconv.FormatInt(v.(int64), 10)
	case signature.Long:
		return strconv.FormatInt(v.(int64), 10) + "LL"
	case signature.Double:
		return floatText(v.(float64))
	case signature.Bool:
		return strconv.FormatBool(v.(bool))
	case signature.Char:
		return cppChar(v.(rune))
	case signature.String:
		return codegen.Quote(v.(string))
	case signature.Array:
		return "{" + joinLiterals(v.([]any), *t.Elem, be.literal) + "}"
	}
	panic(fmt.Sprintf("harness: no C++ literal for %s", t))
}

func cppChar(r rune) string {
	switch r {
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	case '\n':
		return `'\n'`
	case '\t':
		return `'\t'`
	case '\r':
		return `'\r'`
	}
	if r < 0x20 || r == 0x7f {
		return fmt.Sprintf(`'\%03o'`, r)
	}
	return "'" + string(r) + "'"
}
