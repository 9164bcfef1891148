package languages

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

var aliases = map[string]Language{
	"cpp":        CPP,
	"c++":        CPP,
	"cxx":        CPP,
	"python":     Python,
	"python3":    Python,
	"py":         Python,
	"javascript": JavaScript,
	"js":         JavaScript,
	"node":       JavaScript,
}

// Parse resolves a user supplied language name.
func Parse(name string) (Language, error) {
	lang, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, name)
	}
	return lang, nil
}

func (l Language) String() string {
	switch l {
	case CPP:
		return "cpp"
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	}
	return fmt.Sprintf("Language(%d)", int(l))
}

func (l Language) DisplayName() string {
	switch l {
	case CPP:
		return "C++"
	case Python:
		return "Python"
	case JavaScript:
		return "JavaScript"
	}
	return l.String()
}

// Toolchain panics on a value outside the enum; Parse is the only way in
// from user input.
func (l Language) Toolchain() Toolchain {
	switch l {
	case CPP:
		return Toolchain{
			Image:          "gcc:13",
			SourceFile:     "solution.cpp",
			CompileCommand: []string{"g++", "-std=c++17", "-O2", "-o", "solution", "solution.cpp"},
			RunCommand:     []string{"./solution"},
		}
	case Python:
		return Toolchain{
			Image:      "python:3.11-slim",
			SourceFile: "solution.py",
			RunCommand: []string{"python3", "solution.py"},
		}
	case JavaScript:
		return Toolchain{
			Image:      "node:20-slim",
			SourceFile: "solution.js",
			RunCommand: []string{"node", "solution.js"},
		}
	}
	panic(fmt.Sprintf("languages: no toolchain for %v", l))
}

// Images returns the distinct container images of all toolchains.
func Images() []string {
	seen := make(map[string]bool)
	var images []string
	for _, l := range all {
		img := l.Toolchain().Image
		if !seen[img] {
			seen[img] = true
			images = append(images, img)
		}
	}
	return images
}
