package eerie

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// DefaultPattern matches the documents run by Run when Params.Pattern is empty.
const DefaultPattern = "*.eer.md"

// TestingT is the interface common to *testing.T and *testing.B.
type TestingT interface {
	Skip(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Log(args ...any)
	Logf(format string, args ...any)
	Failed() bool
	Helper()
}

// Params holds parameters for a call to Run.
type Params struct {
	// Dir is the directory holding the documents.
	Dir string

	// Pattern selects the documents in Dir. It defaults to DefaultPattern.
	Pattern string

	// TestWork specifies that working directories should be
	// retained for inspection after the test completes.
	TestWork bool

	// WorkdirRoot specifies the directory within which documents' work
	// directories will be created. Setting WorkdirRoot implies TestWork=true.
	// If empty, the work directories will be created inside $TMPDIR.
	WorkdirRoot string

	// Setup is called, if non-nil, before each document is materialised.
	// It may edit the environment the command will run with.
	Setup func(*Env) error

	// TestSetup and TestTeardown are shell scripts run in the work
	// directory before and after each document.
	TestSetup    string
	TestTeardown string

	// RequireUniqueNames, if true, requires that all documents
	// have unique base names (excluding extensions).
	RequireUniqueNames bool

	// ContinueOnError causes the standalone runners to continue with the
	// next document after a failure.
	ContinueOnError bool
}

func (p Params) pattern() string {
	if p.Pattern == "" {
		return DefaultPattern
	}
	return p.Pattern
}

// An Env holds the environment variables to use for a document's command.
type Env struct {
	WorkDir string
	Values  []string
}

// Getenv retrieves the value of the environment variable named by the key.
func (e *Env) Getenv(key string) string {
	for _, kv := range e.Values {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Setenv sets the value of the environment variable named by the key.
func (e *Env) Setenv(key, value string) {
	entry := key + "=" + value
	for i, kv := range e.Values {
		if k, _, ok := strings.Cut(kv, "="); ok && k == key {
			e.Values[i] = entry
			return
		}
	}
	e.Values = append(e.Values, entry)
}

// docRun holds execution state for a single document.
type docRun struct {
	t       TestingT
	name    string // short name of test ("cat")
	file    string // full path to the document
	workdir string
	tmpdir  string
	env     []string
	start   time.Time
	params  Params
}

type testCase struct {
	name string
	file string
}

// Run runs the documents in p.Dir as subtests of t.
func Run(t *testing.T, p Params) {
	files := globTestFiles(t, p)
	runFiles(t, p, files)
}

// RunFiles runs the documents with the given file names as subtests of t.
// The files need not be in the same directory.
func RunFiles(t *testing.T, p Params, filenames ...string) {
	runFiles(t, p, filenames)
}

// RunStandalone runs the documents in p.Dir without using t.Run.
// This is useful for command-line tools that don't need the full testing framework.
func RunStandalone(t TestingT, p Params) {
	files := globTestFiles(t, p)
	runFilesStandalone(t, p, files)
}

// RunFilesStandalone runs the given documents without using t.Run.
func RunFilesStandalone(t TestingT, p Params, filenames ...string) {
	runFilesStandalone(t, p, filenames)
}

func testName(filename string) string {
	base := filepath.Base(filename)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func buildTestCases(t TestingT, p Params, filenames []string) []testCase {
	var tests []testCase
	seen := make(map[string]bool)
	for _, filename := range filenames {
		name := testName(filename)
		if p.RequireUniqueNames {
			if seen[name] {
				t.Fatalf("duplicate test name %q", name)
			}
			seen[name] = true
		}
		tests = append(tests, testCase{name, filename})
	}
	return tests
}

func globTestFiles(t TestingT, p Params) []string {
	files, err := filepath.Glob(filepath.Join(p.Dir, p.pattern()))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no documents found")
	}
	return files
}

func runFiles(t *testing.T, p Params, filenames []string) {
	tests := buildTestCases(t, p, filenames)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &docRun{t: t, name: tc.name, file: tc.file, params: p}
			defer r.finalize()
			r.run()
		})
	}
}

func runFilesStandalone(t TestingT, p Params, filenames []string) {
	tests := buildTestCases(t, p, filenames)
	for _, tc := range tests {
		dt := &docT{TestingT: t}
		func() {
			t.Logf("=== RUN   %s", tc.name)
			r := &docRun{t: dt, name: tc.name, file: tc.file, params: p, start: time.Now()}
			defer r.finalize()
			r.run()

			if dt.failed {
				t.Logf("--- FAIL: %s (%s)", tc.name, time.Since(r.start).Round(time.Millisecond))
			} else {
				t.Logf("--- PASS: %s (%s)", tc.name, time.Since(r.start).Round(time.Millisecond))
			}
		}()
		if dt.failed && !p.ContinueOnError {
			return
		}
	}
}

// docT reports the failures of a single document while forwarding
// everything to the shared TestingT.
type docT struct {
	TestingT
	failed bool
}

func (d *docT) Fatal(args ...any) {
	d.failed = true
	d.TestingT.Fatal(args...)
}

func (d *docT) Fatalf(format string, args ...any) {
	d.failed = true
	d.TestingT.Fatalf(format, args...)
}

func (d *docT) Failed() bool { return d.failed }

// setup creates the work directory and the base environment.
func (r *docRun) setup() error {
	r.start = time.Now()

	root := os.TempDir()
	if r.params.WorkdirRoot != "" {
		root = r.params.WorkdirRoot
		r.params.TestWork = true
		if err := os.MkdirAll(root, 0o755); err != nil {
			return err
		}
	}
	var err error
	r.workdir, err = os.MkdirTemp(root, "eerie-*")
	if err != nil {
		return err
	}
	// TMPDIR stays outside the work directory: the command sees only
	// the files the document declares.
	r.tmpdir, err = os.MkdirTemp(root, "eerie-tmp-*")
	if err != nil {
		return err
	}

	r.env = []string{
		"WORK=" + r.workdir,
		"PATH=" + os.Getenv("PATH"),
		homeEnvName() + "=/no-home",
		tempEnvName() + "=" + r.tmpdir,
	}
	return nil
}

// run materialises and, if it has a command, executes the document.
func (r *docRun) run() {
	if err := r.setup(); err != nil {
		r.t.Fatal(err)
		return
	}

	doc, err := ReadFile(r.file)
	if err != nil {
		r.t.Fatal(err)
		return
	}

	if r.params.Setup != nil {
		env := &Env{
			WorkDir: r.workdir,
			Values:  append([]string{}, r.env...),
		}
		if err := r.params.Setup(env); err != nil {
			r.t.Fatalf("setup failed: %v", err)
			return
		}
		r.env = env.Values
	}

	if r.params.TestSetup != "" {
		if err := r.runHook(r.params.TestSetup); err != nil {
			r.t.Fatalf("test setup failed: %v", err)
			return
		}
	}
	if r.params.TestTeardown != "" {
		defer func() {
			if err := r.runHook(r.params.TestTeardown); err != nil {
				r.t.Fatalf("test teardown failed: %v", err)
			}
		}()
	}

	if _, ok := doc.Command(); !ok {
		if err := doc.Create(r.workdir); err != nil {
			r.t.Fatalf("creating: %v", err)
			return
		}
		r.t.Logf("%s: no command, files created", r.name)
		return
	}

	e := &Executor{Env: append(r.env, "PWD="+r.workdir)}
	res, err := e.Run(context.Background(), doc, r.workdir)
	if res != nil {
		if res.Stdout != "" {
			r.t.Logf("[stdout]\n%s", res.Stdout)
		}
		if res.Stderr != "" {
			r.t.Logf("[stderr]\n%s", res.Stderr)
		}
	}
	if err != nil {
		var mismatch *OutputMismatchError
		if errors.As(err, &mismatch) {
			r.t.Fatalf("running: %v\n%s", err, mismatch.Diff())
			return
		}
		r.t.Fatalf("running: %v", err)
	}
}

// runHook runs a per-document shell script inside the work directory.
func (r *docRun) runHook(script string) error {
	cmd := exec.Command("/bin/sh", script)
	cmd.Dir = r.workdir
	cmd.Env = r.env
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w\n%s", filepath.Base(script), err, output)
	}
	return nil
}

// finalize removes the work directory unless it should be kept.
func (r *docRun) finalize() {
	if r.workdir == "" {
		return
	}
	if !r.params.TestWork {
		os.RemoveAll(r.workdir)
		if r.tmpdir != "" {
			os.RemoveAll(r.tmpdir)
		}
	} else {
		r.t.Logf("work directory: %s", r.workdir)
	}
}

func homeEnvName() string {
	switch runtime.GOOS {
	case "windows":
		return "USERPROFILE"
	case "plan9":
		return "home"
	default:
		return "HOME"
	}
}

func tempEnvName() string {
	switch runtime.GOOS {
	case "windows":
		return "TMP"
	default:
		return "TMPDIR"
	}
}
