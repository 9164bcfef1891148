package languages

// Toolchain is the fixed compile/run configuration of one supported language.
// Commands run with the scratch directory as working directory.
type Toolchain struct {
	Image          string
	SourceFile     string
	CompileCommand []string
	RunCommand     []string
}

func (t Toolchain) Compiled() bool {
	return len(t.CompileCommand) > 0
}

type Language int

const (
	CPP Language = iota + 1
	Python
	JavaScript
)

var all = []Language{CPP, Python, JavaScript}

// All returns the configured languages in a stable order.
func All() []Language {
	out := make([]Language, len(all))
	copy(out, all)
	return out
}
