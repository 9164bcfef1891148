package executor

import (
	"errors"
	"unicode/utf8"

	"github.com/itstheanurag/judgexec/internal/languages"
)

// ErrorKind classifies why a request or a test case did not pass.
type ErrorKind string

const (
	UnsupportedLanguage ErrorKind = "UnsupportedLanguage"
	InputTooLarge       ErrorKind = "InputTooLarge"
	InvalidRequest      ErrorKind = "InvalidRequest"
	CompilationError    ErrorKind = "CompilationError"
	TimeLimitExceeded   ErrorKind = "TimeLimitExceeded"
	MemoryLimitExceeded ErrorKind = "MemoryLimitExceeded"
	RuntimeError        ErrorKind = "RuntimeError"
	InternalError       ErrorKind = "InternalError"
	// Skipped marks cases not run after an earlier failure with StopOnFailure.
	Skipped ErrorKind = "Skipped"
)

var (
	ErrInputTooLarge  = errors.New("input too large")
	ErrInvalidRequest = errors.New("invalid request")
)

// internalMessage is all a caller learns about infrastructure failures.
const internalMessage = "internal error"

const truncatedSuffix = "...[truncated]"

type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Unwrap maps request rejections onto their sentinel errors.
func (f *Failure) Unwrap() error {
	switch f.Kind {
	case UnsupportedLanguage:
		return languages.ErrUnsupportedLanguage
	case InputTooLarge:
		return ErrInputTooLarge
	case InvalidRequest:
		return ErrInvalidRequest
	}
	return nil
}

func fail(kind ErrorKind, msg string) *Failure {
	return &Failure{Kind: kind, Message: msg}
}

// truncate caps s at limit bytes, cutting on a rune boundary.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedSuffix
}
