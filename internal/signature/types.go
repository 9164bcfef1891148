package signature

import (
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	Void
	Int
	Long
	Double
	Bool
	Char
	String
	Array
)

// Type is the value shape of a parameter or return type. Elem is set only
// for arrays; Raw keeps the original spelling.
type Type struct {
	Kind Kind
	Elem *Type
	Raw  string
}

func ArrayOf(elem Type) Type {
	return Type{Kind: Array, Elem: &elem, Raw: elem.String() + "[]"}
}

var scalarNames = map[string]Kind{
	"void":          Void,
	"int":           Int,
	"int32_t":       Int,
	"short":         Int,
	"unsigned":      Int,
	"unsigned int":  Int,
	"size_t":        Long,
	"long":          Long,
	"long int":      Long,
	"long long":     Long,
	"long long int": Long,
	"int64_t":       Long,
	"double":        Double,
	"float":         Double,
	"long double":   Double,
	"bool":          Bool,
	"boolean":       Bool,
	"char":          Char,
	"string":        String,
	"str":           String,
}

// ParseType understands C++ spellings (std::vector<std::vector<int>>,
// const string&) and the bracket suffix form (int[][]).
func ParseType(s string) Type {
	raw := strings.TrimSpace(s)
	t := normalizeType(raw)

	switch {
	case strings.HasSuffix(t, "[]"):
		elem := ParseType(strings.TrimSuffix(t, "[]"))
		return Type{Kind: Array, Elem: &elem, Raw: raw}
	case strings.HasPrefix(t, "vector<") && strings.HasSuffix(t, ">"):
		elem := ParseType(t[len("vector<") : len(t)-1])
		return Type{Kind: Array, Elem: &elem, Raw: raw}
	}

	if k, ok := scalarNames[t]; ok {
		return Type{Kind: k, Raw: raw}
	}
	return Type{Kind: Unknown, Raw: raw}
}

func normalizeType(s string) string {
	s = strings.ReplaceAll(s, "std::", "")
	s = strings.ReplaceAll(s, "&", "")
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if f == "const" {
			continue
		}
		kept = append(kept, f)
	}
	s = strings.Join(kept, " ")
	s = strings.ReplaceAll(s, "< ", "<")
	s = strings.ReplaceAll(s, " >", ">")
	s = strings.ReplaceAll(s, " [", "[")
	return s
}

func (t Type) IsScalar() bool {
	switch t.Kind {
	case Int, Long, Double, Bool, Char, String:
		return true
	}
	return false
}

// Depth is the array nesting level: 0 for scalars.
func (t Type) Depth() int {
	if t.Kind != Array || t.Elem == nil {
		return 0
	}
	return 1 + t.Elem.Depth()
}

// Base is the innermost element type.
func (t Type) Base() Type {
	if t.Kind == Array && t.Elem != nil {
		return t.Elem.Base()
	}
	return t
}

// Decl is the C++ spelling used when declaring a value of this type.
func (t Type) Decl() string {
	switch t.Kind {
	case Void:
		return "void"
	case Int:
		return "int"
	case Long:
		return "long long"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case String:
		return "string"
	case Array:
		return "vector<" + t.Elem.Decl() + ">"
	}
	return t.Raw
}

// String is the language neutral spelling.
func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Int:
		return "int"
	case Long:
		return "long"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case Char:
		return "char"
	case String:
		return "string"
	case Array:
		return t.Elem.String() + "[]"
	}
	return t.Raw
}
