package harness

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/itstheanurag/judgexec/internal/signature"
)

var ErrInvalidContract = errors.New("invalid function contract")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Param struct {
	Name string
	Type signature.Type
}

// Contract is the typed shape of the function under test. Method calls go
// through a fresh instance of the Solution class. A void function passes a
// case when it returns without raising.
type Contract struct {
	Name   string
	Params []Param
	Return signature.Type
	Method bool
}

// ParamSpec is a parameter as supplied by a caller, with a textual type.
type ParamSpec struct {
	Name string
	Type string
}

// NewContract parses and validates a caller supplied contract. Types accept
// C++ spellings and the int[][] form.
func NewContract(name, returnType string, params []ParamSpec, method bool) (*Contract, error) {
	c := &Contract{
		Name:   strings.TrimSpace(name),
		Return: signature.ParseType(returnType),
		Method: method,
	}
	for _, p := range params {
		c.Params = append(c.Params, Param{Name: strings.TrimSpace(p.Name), Type: signature.ParseType(p.Type)})
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Contract) Validate() error {
	if !identifier.MatchString(c.Name) {
		return fmt.Errorf("%w: bad function name %q", ErrInvalidContract, c.Name)
	}
	if c.Return.Kind != signature.Void && !supported(c.Return) {
		return fmt.Errorf("%w: unsupported return type %q", ErrInvalidContract, c.Return.Raw)
	}
	seen := make(map[string]bool)
	for _, p := range c.Params {
		if !identifier.MatchString(p.Name) || strings.HasPrefix(p.Name, "jh") || strings.HasPrefix(p.Name, "_jh") {
			return fmt.Errorf("%w: bad parameter name %q", ErrInvalidContract, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrInvalidContract, p.Name)
		}
		seen[p.Name] = true
		if !supported(p.Type) {
			return fmt.Errorf("%w: unsupported type %q for %s", ErrInvalidContract, p.Type.Raw, p.Name)
		}
	}
	return nil
}

func supported(t signature.Type) bool {
	if t.Kind == signature.Array {
		return t.Elem != nil && supported(*t.Elem)
	}
	return t.IsScalar()
}

// TestCase is one literal case. Args follow the contract's parameter order.
type TestCase struct {
	ID           string
	DisplayInput string
	Args         []any
	Expected     any
}

// NewCase parses input, one line per parameter, and expected against the
// contract.
func (c *Contract) NewCase(id, input, expected string) (TestCase, error) {
	tc := TestCase{ID: id, DisplayInput: Display(input)}

	lines := splitLines(input)
	if len(lines) == 0 && len(c.Params) == 1 {
		lines = []string{""}
	}
	if len(lines) != len(c.Params) {
		return tc, fmt.Errorf("%w: case %s has %d input lines, %s takes %d parameters",
			ErrUnsupportedValue, id, len(lines), c.Name, len(c.Params))
	}
	for i, p := range c.Params {
		v, err := ParseValue(p.Type, lines[i])
		if err != nil {
			return tc, fmt.Errorf("case %s, parameter %s: %w", id, p.Name, err)
		}
		tc.Args = append(tc.Args, v)
	}

	v, err := ParseValue(c.Return, expected)
	if err != nil {
		return tc, fmt.Errorf("case %s, expected value: %w", id, err)
	}
	tc.Expected = v
	return tc, nil
}

func splitLines(input string) []string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return nil
	}
	return strings.Split(input, "\n")
}

// Display turns multi line input into the single line form carried by marker
// lines.
func Display(input string) string {
	lines := splitLines(input)
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.ReplaceAll(strings.Join(lines, ", "), Delimiter, "| ~ |")
}
