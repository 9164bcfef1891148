// Package signature extracts the callable shape of a function-only C++
// submission: return type, name, typed parameters and whether it is a
// method of the Solution class.
package signature

import (
	"fmt"
	"strings"
)

// SolutionType is the aggregate whose methods are invoked through an instance.
const SolutionType = "Solution"

type Param struct {
	Type        string
	Name        string
	ByReference bool
}

type Signature struct {
	ReturnType string
	Name       string
	Params     []Param
	Method     bool
}

func (s *Signature) Return() Type {
	return ParseType(s.ReturnType)
}

func (p Param) Value() Type {
	return ParseType(p.Type)
}

// Text renders the signature as a declaration, used for include detection.
func (s *Signature) Text() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		ref := ""
		if p.ByReference {
			ref = "&"
		}
		parts[i] = p.Type + ref + " " + p.Name
	}
	return fmt.Sprintf("%s %s(%s)", s.ReturnType, s.Name, strings.Join(parts, ", "))
}

var keywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true, "switch": true,
	"case": true, "return": true, "new": true, "delete": true, "throw": true, "goto": true,
	"using": true, "namespace": true, "typedef": true, "template": true, "class": true,
	"struct": true, "union": true, "enum": true, "public": true, "private": true,
	"protected": true, "sizeof": true, "catch": true, "try": true, "operator": true,
}

var leadingSpecifiers = map[string]bool{
	"static": true, "inline": true, "virtual": true, "constexpr": true,
	"extern": true, "friend": true, "explicit": true,
}

var builtinWords = map[string]bool{
	"unsigned": true, "signed": true, "short": true, "long": true,
	"int": true, "char": true, "double": true, "float": true,
}

// Parse returns the first function definition that is not main, or nil when
// the source holds no such definition. A nil result means the driver cannot
// be synthesized; it is not an error by itself.
func Parse(src string) *Signature {
	p := &parser{src: src, toks: tokenize(src)}
	return p.run()
}

type parser struct {
	src  string
	toks []token
}

func (p *parser) run() *Signature {
	depth := 0
	solutionDepth := -1

	for i := 0; i < len(p.toks); i++ {
		t := p.toks[i]

		if t.kind == tokIdent && (t.text == "class" || t.text == "struct") &&
			i+1 < len(p.toks) && p.toks[i+1].is(tokIdent, SolutionType) {
			if open := p.find(i+2, "{", ";"); open >= 0 && p.toks[open].text == "{" {
				depth++
				solutionDepth = depth
				i = open
				continue
			}
		}

		switch {
		case t.is(tokPunct, "{"):
			depth++
			continue
		case t.is(tokPunct, "}"):
			depth--
			if solutionDepth >= 0 && depth < solutionDepth {
				solutionDepth = -1
			}
			continue
		}

		inSolution := solutionDepth >= 0 && depth == solutionDepth
		if depth != 0 && !inSolution {
			continue
		}
		if !p.statementStart(i) {
			continue
		}

		sig, body, ok := p.function(i)
		if !ok {
			continue
		}
		if sig.Name == "main" {
			// Resume at the body brace so depth stays balanced.
			i = body - 1
			continue
		}
		sig.Method = inSolution
		return sig
	}
	return nil
}

func (p *parser) statementStart(i int) bool {
	if i == 0 {
		return true
	}
	prev := p.toks[i-1]
	if prev.kind != tokPunct {
		return false
	}
	switch prev.text {
	case ";", "{", "}", ":":
		return true
	}
	return false
}

// find returns the index of the first token at or after i whose text is one
// of stops, or -1.
func (p *parser) find(i int, stops ...string) int {
	for ; i < len(p.toks); i++ {
		for _, s := range stops {
			if p.toks[i].kind == tokPunct && p.toks[i].text == s {
				return i
			}
		}
	}
	return -1
}

// function tries to match `returnType name(params) [qualifiers] {` at i.
// It returns the index of the opening body brace.
func (p *parser) function(i int) (*Signature, int, bool) {
	for i < len(p.toks) && p.toks[i].kind == tokIdent && leadingSpecifiers[p.toks[i].text] {
		i++
	}
	typeStart := i
	typeEnd, ok := p.typeSpan(i)
	if !ok {
		return nil, 0, false
	}

	if typeEnd >= len(p.toks) || p.toks[typeEnd].kind != tokIdent || keywords[p.toks[typeEnd].text] {
		return nil, 0, false
	}
	name := p.toks[typeEnd].text
	open := typeEnd + 1
	if open >= len(p.toks) || !p.toks[open].is(tokPunct, "(") {
		return nil, 0, false
	}
	closing := p.matchParen(open)
	if closing < 0 {
		return nil, 0, false
	}

	body := closing + 1
	for body < len(p.toks) && p.toks[body].kind == tokIdent {
		switch p.toks[body].text {
		case "const", "override", "noexcept", "final":
			body++
			continue
		}
		return nil, 0, false
	}
	if body >= len(p.toks) || !p.toks[body].is(tokPunct, "{") {
		return nil, 0, false
	}

	sig := &Signature{
		ReturnType: collapse(p.src[p.toks[typeStart].pos:p.toks[typeEnd-1].end]),
		Name:       name,
	}
	for n, raw := range splitParams(p.src[p.toks[open].end:p.toks[closing].pos]) {
		sig.Params = append(sig.Params, parseParam(raw, n))
	}
	return sig, body, true
}

// typeSpan consumes a type starting at i and returns the index just past it.
func (p *parser) typeSpan(i int) (int, bool) {
	if i >= len(p.toks) || p.toks[i].kind != tokIdent || keywords[p.toks[i].text] {
		return 0, false
	}

	for i < len(p.toks) && p.toks[i].is(tokIdent, "const") {
		i++
	}
	if i >= len(p.toks) || p.toks[i].kind != tokIdent {
		return 0, false
	}

	if builtinWords[p.toks[i].text] {
		for i < len(p.toks) && p.toks[i].kind == tokIdent && builtinWords[p.toks[i].text] {
			i++
		}
	} else {
		i++
		for i+1 < len(p.toks) && p.toks[i].is(tokPunct, "::") && p.toks[i+1].kind == tokIdent {
			i += 2
		}
	}

	if i < len(p.toks) && p.toks[i].is(tokPunct, "<") {
		depth := 0
		for ; i < len(p.toks); i++ {
			switch {
			case p.toks[i].is(tokPunct, "<"):
				depth++
			case p.toks[i].is(tokPunct, ">"):
				depth--
			case p.toks[i].is(tokPunct, ";"), p.toks[i].is(tokPunct, "{"):
				return 0, false
			}
			if depth == 0 {
				i++
				break
			}
		}
		if depth != 0 {
			return 0, false
		}
	}

	for i < len(p.toks) {
		t := p.toks[i]
		if t.is(tokPunct, "*") || t.is(tokPunct, "&") || t.is(tokIdent, "const") {
			i++
			continue
		}
		break
	}
	return i, true
}

func (p *parser) matchParen(open int) int {
	depth := 0
	for i := open; i < len(p.toks); i++ {
		switch {
		case p.toks[i].is(tokPunct, "("):
			depth++
		case p.toks[i].is(tokPunct, ")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitParams splits a parameter list on commas at bracket depth zero, so
// "vector<pair<int, int>>& a, int b" yields two entries.
func splitParams(list string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '<', '(', '[', '{':
			depth++
		case '>', ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, list[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, list[start:])

	out := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || part == "void" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseParam(raw string, index int) Param {
	text := stripDefault(raw)

	suffix := ""
	for strings.HasSuffix(text, "]") {
		open := strings.LastIndex(text, "[")
		if open < 0 {
			break
		}
		suffix += "[]"
		text = strings.TrimSpace(text[:open])
	}

	end := len(text)
	start := end
	for start > 0 && isIdentPart(text[start-1]) {
		start--
	}
	name := text[start:end]
	typ := strings.TrimSpace(text[:start])
	if name == "" || typ == "" || keywords[name] || (builtinWords[name] && onlyBuiltins(typ)) {
		// Unnamed parameter such as `int` or `vector<int>&`.
		typ, name = strings.TrimSpace(text), fmt.Sprintf("arg%d", index)
	}

	param := Param{Name: name}
	if strings.HasSuffix(typ, "&") {
		param.ByReference = true
		typ = strings.TrimSpace(strings.TrimRight(typ, "&"))
	}
	param.Type = collapse(typ) + suffix
	return param
}

func onlyBuiltins(s string) bool {
	for _, f := range strings.Fields(s) {
		if !builtinWords[f] && f != "const" {
			return false
		}
	}
	return true
}

func stripDefault(s string) string {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[', '{':
			depth++
		case '>', ')', ']', '}':
			depth--
		case '=':
			if depth == 0 {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

func collapse(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, " <", "<")
	s = strings.ReplaceAll(s, "< ", "<")
	s = strings.ReplaceAll(s, " >", ">")
	s = strings.ReplaceAll(s, " ::", "::")
	s = strings.ReplaceAll(s, ":: ", "::")
	s = strings.ReplaceAll(s, " &", "&")
	s = strings.ReplaceAll(s, " *", "*")
	return s
}
