package signature

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokLiteral
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	pos  int
	end  int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// tokenize splits C++ source into identifiers, numbers, literals and single
// character punctuation ("::" is kept whole). Comments and preprocessor lines
// are dropped. '>' is never merged so template depth can be counted per char.
func tokenize(src string) []token {
	var toks []token
	i := 0
	lineStart := true

	for i < len(src) {
		c := src[i]

		switch {
		case c == '\n':
			lineStart = true
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		case c == '#' && lineStart:
			i = skipDirective(src, i)
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := indexFrom(src, "*/", i+2)
			if end < 0 {
				return toks
			}
			i = end + 2
			continue
		}
		lineStart = false

		start := i
		switch {
		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start, end: i})
		case c >= '0' && c <= '9':
			for i < len(src) && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start, end: i})
		case c == '"' || c == '\'':
			i = skipQuoted(src, i)
			toks = append(toks, token{kind: tokLiteral, text: src[start:i], pos: start, end: i})
		case c == ':' && i+1 < len(src) && src[i+1] == ':':
			i += 2
			toks = append(toks, token{kind: tokPunct, text: "::", pos: start, end: i})
		default:
			i++
			toks = append(toks, token{kind: tokPunct, text: src[start:i], pos: start, end: i})
		}
	}
	return toks
}

func skipDirective(src string, i int) int {
	for i < len(src) {
		if src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n' {
			i += 2
			continue
		}
		if src[i] == '\n' {
			return i
		}
		i++
	}
	return i
}

func skipQuoted(src string, i int) int {
	quote := src[i]
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i + 1
		case '\n':
			return i
		}
		i++
	}
	return i
}

func indexFrom(s, sub string, from int) int {
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
