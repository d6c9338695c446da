package eerie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// Executor errors.
var (
	ErrNoCommand        = errors.New("no command")
	ErrBadStatus        = errors.New("status is not an integer")
	ErrNonZeroExit      = errors.New("command exited with non-zero status")
	ErrUndeterminedExit = errors.New("exit status is undetermined")
	ErrInvalidUTF8      = errors.New("output is not valid UTF-8")
)

// FileError records a filesystem failure while materialising a document.
type FileError struct {
	Op   string // "mkdir" or "write"
	Path string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// SpawnError is returned when the command could not be started.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string { return fmt.Sprintf("start %s: %v", e.Name, e.Err) }
func (e *SpawnError) Unwrap() error { return e.Err }

// OutputMismatchError reports a captured stream that differs from the
// document's expectation.
type OutputMismatchError struct {
	Stream   string // "stdout" or "stderr"
	Expected string
	Actual   string
}

func (e *OutputMismatchError) Error() string {
	return e.Stream + " does not match"
}

// Diff returns a unified diff from the expected to the actual output.
func (e *OutputMismatchError) Diff() string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(e.Expected),
		FromFile: "expected " + e.Stream,
		B:        difflib.SplitLines(e.Actual),
		ToFile:   "actual " + e.Stream,
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("expected:\n%s\nactual:\n%s", e.Expected, e.Actual)
	}
	return diff
}

// StatusMismatchError reports an exit status different from the one the
// document expects.
type StatusMismatchError struct {
	Expected int
	Actual   int
}

func (e *StatusMismatchError) Error() string {
	return fmt.Sprintf("wrong exit status: expected %d, got %d", e.Expected, e.Actual)
}

// Result holds what a command produced.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Create writes every non-reserved file of the document below dir, creating
// parent directories as needed and truncating existing files.
func (d *Document) Create(dir string) error {
	for _, f := range d.Files {
		if IsReserved(f.Name) {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
			return &FileError{Op: "mkdir", Path: path, Err: err}
		}
		if err := os.WriteFile(path, []byte(f.Body), 0o666); err != nil {
			return &FileError{Op: "write", Path: path, Err: err}
		}
	}
	return nil
}

// Run executes the document in dir with a default Executor.
func (d *Document) Run(ctx context.Context, dir string) (*Result, error) {
	var e Executor
	return e.Run(ctx, d, dir)
}

// Executor runs documents.
type Executor struct {
	// Env is the environment of the command. If nil, the current
	// process environment is used.
	Env []string

	// Stdout and Stderr, if set, receive a copy of the command output
	// as it is produced. A failing copy does not interrupt the command;
	// its error is returned once the outcome has been checked.
	Stdout io.Writer
	Stderr io.Writer
}

// Run materialises doc in dir, runs its command there and checks the
// outcome against the stdout, stderr and status records. The returned
// Result is non-nil whenever the command was started.
func (e *Executor) Run(ctx context.Context, doc *Document, dir string) (*Result, error) {
	args, err := doc.Args()
	if err != nil {
		return nil, err
	}
	expectedStatus, hasStatus, err := doc.Status()
	if err != nil {
		return nil, err
	}

	if err := doc.Create(dir); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.lookPath(args[0]), args[1:]...)
	cmd.Args[0] = args[0]
	cmd.Dir = dir
	cmd.Env = e.Env
	if stdin, ok := doc.Stdin(); ok {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	outCopy := &teeWriter{buf: &stdout, w: e.Stdout}
	errCopy := &teeWriter{buf: &stderr, w: e.Stderr}
	cmd.Stdout, cmd.Stderr = outCopy, errCopy

	err = cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, &SpawnError{Name: args[0], Err: err}
	}

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	code, codeErr := exitCode(cmd.ProcessState)
	res.ExitCode = code

	if err := checkStream(doc, NameStdout, stdout.Bytes()); err != nil {
		return res, err
	}
	if err := checkStream(doc, NameStderr, stderr.Bytes()); err != nil {
		return res, err
	}

	if codeErr != nil {
		return res, codeErr
	}
	if hasStatus && code != expectedStatus {
		return res, &StatusMismatchError{Expected: expectedStatus, Actual: code}
	}
	if !hasStatus && !cmd.ProcessState.Success() {
		return res, fmt.Errorf("%w: %d", ErrNonZeroExit, code)
	}
	if outCopy.err != nil {
		return res, fmt.Errorf("copy %s: %w", NameStdout, outCopy.err)
	}
	if errCopy.err != nil {
		return res, fmt.Errorf("copy %s: %w", NameStderr, errCopy.err)
	}
	return res, nil
}

// lookPath resolves name against the PATH of e.Env. Names containing a
// path separator, and lookups that fail, are left to os/exec.
func (e *Executor) lookPath(name string) string {
	if e.Env == nil || strings.ContainsAny(name, `/\`) {
		return name
	}
	var path string
	for _, kv := range e.Env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == "PATH" {
			path = v
		}
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() && info.Mode()&0o111 != 0 {
			return candidate
		}
	}
	return name
}

func checkStream(doc *Document, stream string, got []byte) error {
	want, ok := doc.body(stream)
	if !ok {
		return nil
	}
	if !utf8.Valid(got) {
		return fmt.Errorf("%s: %w", stream, ErrInvalidUTF8)
	}
	if string(got) != want {
		return &OutputMismatchError{Stream: stream, Expected: want, Actual: string(got)}
	}
	return nil
}

// teeWriter captures output into buf and copies it to w. Errors from w are
// kept in err and never reach the process.
type teeWriter struct {
	buf *bytes.Buffer
	w   io.Writer
	err error
}

func (t *teeWriter) Write(p []byte) (int, error) {
	t.buf.Write(p)
	if t.w != nil && t.err == nil {
		if _, err := t.w.Write(p); err != nil {
			t.err = err
		}
	}
	return len(p), nil
}
