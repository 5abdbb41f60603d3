package repo

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// CommitMessageTemplate pre-fills the scratch file handed to the editor.
const CommitMessageTemplate = "# Title\n#\n# Body"

// MessageSource fills in the commit message scratch file at path. The
// file already holds CommitMessageTemplate; whatever it contains after
// AcquireMessage returns becomes the commit message, verbatim.
type MessageSource interface {
	AcquireMessage(path string) error
}

// MessageSourceFunc adapts a function to MessageSource.
type MessageSourceFunc func(path string) error

func (f MessageSourceFunc) AcquireMessage(path string) error {
	return f(path)
}

// StaticMessage is a MessageSource that writes a fixed message.
type StaticMessage string

func (m StaticMessage) AcquireMessage(path string) error {
	if err := os.WriteFile(path, []byte(m), 0o644); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Editor launches an external editor on the scratch file and blocks until
// it exits. There is no timeout.
type Editor struct {
	// Command is a shell-style command line; the file path is appended as
	// the last argument.
	Command string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewEditor returns an Editor attached to the process stdio, using the
// first non-empty of configured, $VISUAL, $EDITOR, and "vi".
func NewEditor(configured string) *Editor {
	return &Editor{
		Command: ResolveEditorCommand(configured),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// ResolveEditorCommand picks the editor command line.
func ResolveEditorCommand(configured string) string {
	for _, c := range []string{configured, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return "vi"
}

func (e *Editor) AcquireMessage(path string) error {
	args, err := shlex.Split(e.Command)
	if err != nil {
		return fmt.Errorf("%w: parse command %q: %w", ErrEditorFailed, e.Command, err)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: empty editor command", ErrEditorFailed)
	}

	cmd := exec.Command(args[0], append(args[1:], path)...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEditorFailed, args[0], err)
	}
	return nil
}
