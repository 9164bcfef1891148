package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// WorkDir is where the scratch directory is mounted inside every container.
const WorkDir = "/sandbox"

var ErrInvalidInvocation = errors.New("invalid invocation")

var safeFileName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

type Limits struct {
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
}

// Invocation is one single-use container run. HostDir is mounted at WorkDir
// as the only writable path; StdinFile, when set, names a file in HostDir
// that is fed to the command's stdin.
type Invocation struct {
	Image          string
	Cmd            []string
	HostDir        string
	StdinFile      string
	Timeout        time.Duration
	Limits         Limits
	User           string
	MaxOutputBytes int
}

type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	OOMKilled bool
	Duration  time.Duration
	// MemoryBytes is best effort and zero when the runtime does not report it.
	MemoryBytes int64
}

type Sandbox interface {
	Exec(ctx context.Context, inv Invocation) (*Result, error)
	EnsureImage(ctx context.Context, image string) error
}

func (inv Invocation) validate() error {
	switch {
	case inv.Image == "":
		return fmt.Errorf("%w: no image", ErrInvalidInvocation)
	case len(inv.Cmd) == 0:
		return fmt.Errorf("%w: no command", ErrInvalidInvocation)
	case inv.HostDir == "":
		return fmt.Errorf("%w: no scratch directory", ErrInvalidInvocation)
	case inv.Timeout <= 0:
		return fmt.Errorf("%w: no timeout", ErrInvalidInvocation)
	case inv.StdinFile != "" && !safeFileName.MatchString(inv.StdinFile):
		return fmt.Errorf("%w: stdin file %q", ErrInvalidInvocation, inv.StdinFile)
	}
	return nil
}

// command returns the container command, wrapped in a shell redirect when
// stdin comes from a file.
func (inv Invocation) command() []string {
	if inv.StdinFile == "" {
		return inv.Cmd
	}
	script := fmt.Sprintf(`exec "$0" "$@" < %s/%s`, WorkDir, inv.StdinFile)
	return append([]string{"sh", "-c", script}, inv.Cmd...)
}

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest while still reporting full writes.
type cappedBuffer struct {
	buf   []byte
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return string(b.buf)
}
