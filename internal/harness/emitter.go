// Package harness emits self checking programs that embed test cases as
// source literals, and parses the marker lines those programs print.
package harness

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/itstheanurag/judgexec/internal/codegen"
	"github.com/itstheanurag/judgexec/internal/languages"
	"github.com/itstheanurag/judgexec/internal/signature"
)

const (
	CaseTag    = "__JUDGE_CASE__"
	SummaryTag = "__JUDGE_SUMMARY__"
	Delimiter  = "|~|"

	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

var ErrEntryPointPresent = errors.New("source defines its own entry point")

// backend owns the literal, serializer and comparator rules of one target
// language.
type backend interface {
	// prelude writes the submission followed by the format, compare and
	// report helpers.
	prelude(b *codegen.Builder, source string, c *Contract) error
	testCase(b *codegen.Builder, c *Contract, index int, tc TestCase)
	epilogue(b *codegen.Builder, total int)
	literal(t signature.Type, v any) string
}

func backendFor(lang languages.Language, s Sentinels) backend {
	switch lang {
	case languages.CPP:
		return cppBackend{s: s}
	case languages.Python:
		return pythonBackend{s: s}
	case languages.JavaScript:
		return jsBackend{s: s}
	}
	panic(fmt.Sprintf("harness: no backend for %v", lang))
}

// Emit returns a program that runs every case against the submission and
// prints one marker line per case followed by a summary line, each prefixed
// with s. Cases are reported under their index; the caller maps indexes back
// to its ids.
func Emit(lang languages.Language, source string, c *Contract, cases []TestCase, s Sentinels) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	for i, tc := range cases {
		if err := checkCase(c, tc); err != nil {
			return "", fmt.Errorf("case %d: %w", i, err)
		}
	}

	be := backendFor(lang, s)
	unit := "    "
	b := codegen.NewBuilder(unit)
	if err := be.prelude(b, source, c); err != nil {
		return "", err
	}
	for i, tc := range cases {
		be.testCase(b, c, i, tc)
	}
	be.epilogue(b, len(cases))
	return b.String(), nil
}

// checkCase verifies the Go types of a case against the contract, so every
// backend can assert them when rendering literals.
func checkCase(c *Contract, tc TestCase) error {
	if len(tc.Args) != len(c.Params) {
		return fmt.Errorf("%w: %d arguments for %d parameters", ErrUnsupportedValue, len(tc.Args), len(c.Params))
	}
	for i, p := range c.Params {
		if !conforms(p.Type, tc.Args[i]) {
			return fmt.Errorf("%w: argument %s is %T, want %s", ErrUnsupportedValue, p.Name, tc.Args[i], p.Type)
		}
	}
	if !conforms(c.Return, tc.Expected) {
		return fmt.Errorf("%w: expected value is %T, want %s", ErrUnsupportedValue, tc.Expected, c.Return)
	}
	return nil
}

func conforms(t signature.Type, v any) bool {
	switch t.Kind {
	case signature.Void:
		return v == nil
	case signature.Int, signature.Long:
		_, ok := v.(int64)
		return ok
	case signature.Double:
		_, ok := v.(float64)
		return ok
	case signature.Bool:
		_, ok := v.(bool)
		return ok
	case signature.Char:
		_, ok := v.(rune)
		return ok
	case signature.String:
		_, ok := v.(string)
		return ok
	case signature.Array:
		items, ok := v.([]any)
		if !ok || t.Elem == nil {
			return false
		}
		for _, item := range items {
			if !conforms(*t.Elem, item) {
				return false
			}
		}
		return true
	}
	return false
}

// CaseID is the marker id of the case at index.
func CaseID(index int) string {
	return strconv.Itoa(index)
}

// markerText keeps embedded marker fields on one line and free of the
// delimiter.
func markerText(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	return strings.ReplaceAll(s, Delimiter, "| ~ |")
}

// joinLiterals renders each item with lit and joins them with ", ".
func joinLiterals(items []any, elem signature.Type, lit func(signature.Type, any) string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = lit(elem, item)
	}
	return strings.Join(parts, ", ")
}

func callArgs(c *Contract) string {
	names := make([]string, len(c.Params))
	for i, p := range c.Params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
