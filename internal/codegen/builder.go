// Package codegen holds the line builder shared by the source generators.
package codegen

import (
	"fmt"
	"strings"
)

// Builder accumulates generated source one line at a time with a fixed
// indent unit.
type Builder struct {
	sb     strings.Builder
	unit   string
	indent int
}

func NewBuilder(unit string) *Builder {
	return &Builder{unit: unit}
}

// Line writes one formatted line at the current indentation. With no args the
// format is written verbatim.
func (b *Builder) Line(format string, args ...any) *Builder {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	if text != "" {
		b.sb.WriteString(strings.Repeat(b.unit, b.indent))
		b.sb.WriteString(text)
	}
	b.sb.WriteByte('\n')
	return b
}

func (b *Builder) Blank() *Builder {
	b.sb.WriteByte('\n')
	return b
}

// Raw appends text as is, adding a trailing newline when missing.
func (b *Builder) Raw(text string) *Builder {
	b.sb.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.sb.WriteByte('\n')
	}
	return b
}

func (b *Builder) Indent() *Builder {
	b.indent++
	return b
}

func (b *Builder) Dedent() *Builder {
	if b.indent > 0 {
		b.indent--
	}
	return b
}

func (b *Builder) String() string {
	return b.sb.String()
}

// Quote renders s as a double quoted literal that C++ and Python read back
// as the same string.
func Quote(s string) string {
	return quote(s, `\%03o`)
}

// QuoteJS is Quote for JavaScript, where strict mode rejects octal escapes.
func QuoteJS(s string) string {
	return quote(s, `\u%04x`)
}

func quote(s, control string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, control, r)
				continue
			}
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
