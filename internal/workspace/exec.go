package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command is an external program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the current environment.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Commander runs external commands.
type Commander interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandError is a command that could not start or exited non-zero.
type CommandError struct {
	Cmd      string
	ExitCode int
	// Output is the tail of combined stdout and stderr
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

const maxErrorOutput = 4096

// ExecCommander runs commands with os/exec. Output is streamed to Stdout and
// Stderr when set and always captured for CommandError.
type ExecCommander struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts cmd and waits for it. Cancelling ctx kills the process.
func (e *ExecCommander) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var captured bytes.Buffer
	c.Stdout = tee(&captured, e.Stdout)
	c.Stderr = tee(&captured, e.Stderr)

	err := c.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", cmd, ctxErr)
	}

	cerr := &CommandError{Cmd: cmd.String(), Output: tail(captured.String(), maxErrorOutput), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return cerr
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
