package driver

import (
	"fmt"
	"strings"

	"github.com/itstheanurag/judgexec/internal/codegen"
	"github.com/itstheanurag/judgexec/internal/signature"
)

// scalarNames is the helper suffix per scalar kind.
var scalarNames = map[signature.Kind]string{
	signature.Int:    "int",
	signature.Long:   "long",
	signature.Double: "double",
	signature.Bool:   "bool",
	signature.Char:   "char",
	signature.String: "string",
}

var scalarParsers = map[signature.Kind]string{
	signature.Int:    "static int drv_parse_int(const string& s) { return stoi(drv_trim(s)); }",
	signature.Long:   "static long long drv_parse_long(const string& s) { return stoll(drv_trim(s)); }",
	signature.Double: "static double drv_parse_double(const string& s) { return stod(drv_trim(s)); }",
	signature.Bool:   "static bool drv_parse_bool(const string& s) { string t = drv_trim(s); return t == \"true\" || t == \"1\"; }",
	signature.Char:   "static char drv_parse_char(const string& s) { string t = drv_unquote(s); return t.empty() ? ' ' : t[0]; }",
	signature.String: "static string drv_parse_string(const string& s) { return drv_unquote(s); }",
}

var scalarFormatters = map[signature.Kind]string{
	signature.Int:    "static string drv_format(int v, bool) { return to_string(v); }",
	signature.Long:   "static string drv_format(long long v, bool) { return to_string(v); }",
	signature.Double: "static string drv_format(double v, bool) { ostringstream os; os << v; return os.str(); }",
	signature.Bool:   "static string drv_format(bool v, bool) { return v ? \"true\" : \"false\"; }",
	signature.Char:   "static string drv_format(char v, bool nested) { return nested ? string(\"\\\"\") + v + \"\\\"\" : string(1, v); }",
	signature.String: "static string drv_format(const string& v, bool nested) { return nested ? \"\\\"\" + v + \"\\\"\" : v; }",
}

const (
	trimHelper = `static string drv_trim(const string& s) {
    size_t b = s.find_first_not_of(" \t\r\n");
    if (b == string::npos) return "";
    size_t e = s.find_last_not_of(" \t\r\n");
    return s.substr(b, e - b + 1);
}`
	readLineHelper = `static string drv_read_line() {
    string line;
    getline(cin, line);
    return line;
}`
	unquoteHelper = `static string drv_unquote(const string& s) {
    string t = drv_trim(s);
    if (t.size() < 2 || (t[0] != '"' && t[0] != '\'') || t[t.size() - 1] != t[0]) return t;
    string out;
    for (size_t i = 1; i + 1 < t.size(); i++) {
        char c = t[i];
        if (c == '\\' && i + 2 < t.size()) {
            c = t[++i];
            if (c == 'n') c = '\n';
            else if (c == 't') c = '\t';
            else if (c == 'r') c = '\r';
        }
        out += c;
    }
    return out;
}`
	splitHelper = `static bool drv_opens_quote(const string& cur) {
    size_t e = cur.find_last_not_of(" \t");
    return e == string::npos || cur[e] == '[' || cur[e] == ',';
}
static vector<string> drv_split(const string& s) {
    vector<string> items;
    string t = drv_trim(s);
    if (t.size() < 2 || t[0] != '[' || t[t.size() - 1] != ']') return items;
    t = t.substr(1, t.size() - 2);
    int depth = 0;
    char quote = 0;
    string cur;
    for (size_t i = 0; i < t.size(); i++) {
        char c = t[i];
        if (quote) {
            cur += c;
            if (c == '\\' && i + 1 < t.size()) cur += t[++i];
            else if (c == quote) quote = 0;
            continue;
        }
        if ((c == '"' || c == '\'') && drv_opens_quote(cur)) quote = c;
        else if (c == '[') depth++;
        else if (c == ']') depth--;
        else if (depth == 0 && c == ',') {
            items.push_back(drv_trim(cur));
            cur.clear();
            continue;
        }
        cur += c;
    }
    if (!drv_trim(cur).empty()) items.push_back(drv_trim(cur));
    return items;
}`
	vectorFormatter = `template <typename T>
static string drv_format(const vector<T>& v, bool) {
    string out = "[";
    bool first = true;
    for (const auto& item : v) {
        if (!first) out += ",";
        first = false;
        out += drv_format(item, true);
    }
    return out + "]";
}`
)

// generator emits the driver for one signature. Helpers are planned first so
// only the shapes used by the parameters are written.
type generator struct {
	b *codegen.Builder

	readLine bool
	unquote  bool
	split    bool
	scalars  []signature.Kind
	arrays   []signature.Kind
	matrix   bool
	parsers  map[string]bool
}

// parserFor returns the helper call that converts one input line to t, or
// false when t is not a supported shape.
func parserFor(t signature.Type) (string, bool) {
	switch {
	case t.IsScalar():
		return "drv_parse_" + scalarNames[t.Kind], true
	case t.Depth() == 1 && t.Elem.IsScalar():
		return "drv_parse_" + scalarNames[t.Elem.Kind] + "_array", true
	case t.Depth() == 2 && t.Base().Kind == signature.Int:
		return "drv_parse_int_matrix", true
	}
	return "", false
}

func (g *generator) plan(sig *signature.Signature) {
	for _, p := range sig.Params {
		g.readLine = true
		t := p.Value()
		name, ok := parserFor(t)
		if !ok || g.parsers[name] {
			continue
		}
		g.parsers[name] = true

		switch {
		case t.IsScalar():
			g.addScalar(t.Kind)
		case t.Depth() == 1:
			g.addScalar(t.Elem.Kind)
			g.arrays = append(g.arrays, t.Elem.Kind)
			g.split = true
		default:
			g.addScalar(signature.Int)
			if !g.parsers["drv_parse_int_array"] {
				g.parsers["drv_parse_int_array"] = true
				g.arrays = append(g.arrays, signature.Int)
			}
			g.matrix = true
			g.split = true
		}
	}
}

func (g *generator) addScalar(k signature.Kind) {
	for _, s := range g.scalars {
		if s == k {
			return
		}
	}
	g.scalars = append(g.scalars, k)
	if k == signature.Char || k == signature.String {
		g.unquote = true
	}
}

func (g *generator) emitHelpers() {
	if !g.readLine {
		return
	}
	g.b.Line("// Input helpers: one argument per line.")
	g.b.Raw(trimHelper)
	g.b.Raw(readLineHelper)
	if g.unquote {
		g.b.Raw(unquoteHelper)
	}
	if g.split {
		g.b.Raw(splitHelper)
	}
	for _, k := range g.scalars {
		g.b.Raw(scalarParsers[k])
	}
	for _, k := range g.arrays {
		name := scalarNames[k]
		elem := signature.Type{Kind: k}.Decl()
		g.b.Line("static vector<%s> drv_parse_%s_array(const string& s) {", elem, name).Indent().
			Line("vector<%s> out;", elem).
			Line("for (const string& item : drv_split(s)) out.push_back(drv_parse_%s(item));", name).
			Line("return out;").Dedent().
			Line("}")
	}
	if g.matrix {
		g.b.Line("static vector<vector<int>> drv_parse_int_matrix(const string& s) {").Indent().
			Line("vector<vector<int>> out;").
			Line("for (const string& row : drv_split(s)) out.push_back(drv_parse_int_array(row));").
			Line("return out;").Dedent().
			Line("}")
	}
	g.b.Blank()
}

func (g *generator) emitFormatters(ret signature.Type) {
	if ret.Kind == signature.Void {
		return
	}
	base := ret.Base()
	g.b.Line("// Output formatting.")
	if f, ok := scalarFormatters[base.Kind]; ok {
		g.b.Raw(f)
	} else {
		// Unrecognized return types still need an overload to compile
		// against when they are streamable.
		g.b.Line("template <typename T>").
			Line("static string drv_format(const T& v, bool) { ostringstream os; os << v; return os.str(); }")
	}
	if ret.Kind == signature.Array {
		g.b.Raw(vectorFormatter)
	}
	g.b.Blank()
}

func (g *generator) emitMain(sig *signature.Signature) {
	b := g.b
	b.Line("int main() {").Indent()

	args := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		args[i] = p.Name
		t := p.Value()
		parse, ok := parserFor(t)
		if !ok {
			b.Line("string %s = drv_read_line(); // unsupported parameter type %q, passed as raw text", p.Name, p.Type)
			continue
		}
		b.Line("%s %s = %s(drv_read_line());", declType(p, t), p.Name, parse)
	}

	call := fmt.Sprintf("%s(%s)", sig.Name, strings.Join(args, ", "))
	if sig.Method {
		b.Line("%s drv_solution;", signature.SolutionType)
		call = "drv_solution." + call
	}

	if sig.Return().Kind == signature.Void {
		b.Line("%s;", call)
		b.Line("cout << %s << endl;", codegen.Quote(VoidOutput))
	} else {
		b.Line("auto drv_result = %s;", call)
		b.Line("cout << drv_format(drv_result, false) << endl;")
	}
	b.Line("return 0;").Dedent().Line("}")
}

// declType keeps the parameter's own spelling so reference parameters bind
// to a local of the exact type.
func declType(p signature.Param, t signature.Type) string {
	own := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p.Type), "const "))
	if own == "" || strings.Contains(own, "[]") {
		return t.Decl()
	}
	return own
}
