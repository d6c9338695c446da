package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gfanton/eerie"
	"github.com/peterbourgon/ff/v4"
)

type testConfig struct {
	testWork           bool
	workdirRoot        string
	continueOnError    bool
	requireUniqueNames bool
	pattern            string
}

func (tc *testConfig) registerFlags(fs *ff.FlagSet) {
	fs.BoolVar(&tc.testWork, 0, "test-work", "preserve work directories after tests")
	fs.StringVar(&tc.workdirRoot, 'w', "workdir-root", "", "root directory for work directories")
	fs.BoolVar(&tc.continueOnError, 'c', "continue-on-error", "continue with the next document after a failure")
	fs.BoolVar(&tc.requireUniqueNames, 'u', "require-unique-names", "require unique document names")
	fs.StringVar(&tc.pattern, 'p', "pattern", "", "glob selecting documents in a directory (default "+eerie.DefaultPattern+")")
}

func newTestCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	var tc testConfig
	fs := ff.NewFlagSet("test").SetParent(parent)
	tc.registerFlags(fs)

	return &ff.Command{
		Name:      "test",
		Usage:     "eerie test [FLAGS] <dir|doc>",
		ShortHelp: "run every document of a directory in its own work directory",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			return execTestRunner(cfg, &tc, args)
		},
	}
}

func execTestRunner(cfg *config, tc *testConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("exactly one directory or document required")
	}

	target, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("cannot get absolute path for %s: %w", args[0], err)
	}
	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", args[0], err)
	}

	params := eerie.Params{
		Pattern:            tc.pattern,
		TestWork:           tc.testWork,
		WorkdirRoot:        tc.workdirRoot,
		ContinueOnError:    tc.continueOnError,
		RequireUniqueNames: tc.requireUniqueNames,
	}
	runner := &testResultCapture{w: cfg.stdout, verbose: cfg.verbose}

	if info.IsDir() {
		params.Dir = target
		return eerie.RunStandaloneWithProject(runner, params)
	}
	params.Dir = filepath.Dir(target)
	return eerie.RunFilesStandaloneWithProject(runner, params, target)
}

// testResultCapture implements TestingT to capture test results
type testResultCapture struct {
	w       io.Writer
	failed  bool
	verbose bool
}

func (t *testResultCapture) Skip(args ...any) {
	if t.verbose {
		fmt.Fprint(t.w, "SKIP: ")
		fmt.Fprintln(t.w, args...)
	}
}

func (t *testResultCapture) Fatal(args ...any) {
	t.failed = true
	fmt.Fprint(t.w, "FAIL: ")
	fmt.Fprintln(t.w, args...)
	// Don't exit here like testing.T does, just mark as failed
}

func (t *testResultCapture) Fatalf(format string, args ...any) {
	t.failed = true
	fmt.Fprint(t.w, "FAIL: ")
	fmt.Fprintf(t.w, format, args...)
	fmt.Fprintln(t.w)
}

func (t *testResultCapture) Log(args ...any) {
	if t.verbose {
		fmt.Fprintln(t.w, args...)
	}
}

func (t *testResultCapture) Logf(format string, args ...any) {
	if t.verbose {
		fmt.Fprintf(t.w, format, args...)
		fmt.Fprintln(t.w)
	}
}

func (t *testResultCapture) Failed() bool {
	return t.failed
}

func (t *testResultCapture) Helper() {}
