package harness

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/itstheanurag/judgexec/internal/signature"
)

var ErrUnsupportedValue = errors.New("unsupported value")

// ParseValue reads one line of test input as a value of type t. The result is
// int64 for Int and Long, float64, bool, rune for Char, string, []any for
// arrays, or nil for Void. The grammar is the one the synthesized C++ driver
// reads from stdin.
func ParseValue(t signature.Type, text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	switch t.Kind {
	case signature.Void:
		if trimmed == "" || trimmed == "null" {
			return nil, nil
		}
		return nil, invalid(t, text)
	case signature.Int, signature.Long:
		bits := 32
		if t.Kind == signature.Long {
			bits = 64
		}
		n, err := strconv.ParseInt(trimmed, 10, bits)
		if err != nil {
			return nil, invalid(t, text)
		}
		return n, nil
	case signature.Double:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, invalid(t, text)
		}
		return f, nil
	case signature.Bool:
		switch trimmed {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return nil, invalid(t, text)
	case signature.Char:
		s := unquote(text)
		r, _ := utf8.DecodeRuneInString(s)
		if s == "" || r >= utf8.RuneSelf {
			return nil, invalid(t, text)
		}
		return r, nil
	case signature.String:
		return unquote(text), nil
	case signature.Array:
		if t.Elem == nil {
			break
		}
		items, ok := splitArray(trimmed)
		if !ok {
			return nil, invalid(t, text)
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			v, err := ParseValue(*t.Elem, item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: type %s", ErrUnsupportedValue, t)
}

func invalid(t signature.Type, text string) error {
	return fmt.Errorf("%w: %q is not a valid %s", ErrUnsupportedValue, text, t)
}

// unquote trims s and strips one pair of matching single or double quotes,
// resolving backslash escapes between them.
func unquote(s string) string {
	t := strings.TrimSpace(s)
	if len(t) < 2 || (t[0] != '"' && t[0] != '\'') || t[len(t)-1] != t[0] {
		return t
	}
	body := t[1 : len(t)-1]
	if !strings.Contains(body, `\`) {
		return body
	}

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			switch c = body[i]; c {
			case 'n':
				c = '\n'
			case 't':
				c = '\t'
			case 'r':
				c = '\r'
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// splitArray splits "[a,[b,c],"d,e"]" into its top level items. A quote
// opens a quoted item only at the start of an item, and a backslash inside
// quotes escapes the next byte.
func splitArray(s string) ([]string, bool) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, false
	}
	body := s[1 : len(s)-1]

	var (
		items []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case (c == '"' || c == '\'') && opensQuote(body[:i]):
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth < 0 {
				return nil, false
			}
		case c == ',' && depth == 0:
			items = append(items, strings.TrimSpace(body[start:i]))
			start = i + 1
		}
	}
	if depth != 0 || quote != 0 {
		return nil, false
	}
	if last := strings.TrimSpace(body[start:]); last != "" || len(items) > 0 {
		items = append(items, last)
	}
	return items, true
}

func opensQuote(before string) bool {
	before = strings.TrimRight(before, " \t")
	return before == "" || strings.HasSuffix(before, "[") || strings.HasSuffix(before, ",")
}

// floatText renders f so that every target language reads it back as a
// floating point literal.
func floatText(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
