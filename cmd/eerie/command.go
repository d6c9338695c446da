package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/gfanton/eerie"
	"github.com/peterbourgon/ff/v4"
	"golang.org/x/tools/txtar"
)

type config struct {
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
}

func (cfg *config) registerFlags(fs *ff.FlagSet) {
	fs.BoolVar(&cfg.verbose, 'v', "verbose", "enable verbose output")
}

// NewCommand creates the root ff.Command for the eerie CLI.
func NewCommand(stdout, stderr io.Writer) *ff.Command {
	cfg := &config{stdout: stdout, stderr: stderr}

	fs := ff.NewFlagSet("eerie")
	cfg.registerFlags(fs)

	return &ff.Command{
		Name:      "eerie",
		Usage:     "eerie [FLAGS] SUBCOMMAND ...",
		ShortHelp: "run literate markdown test documents",
		Flags:     fs,
		Subcommands: []*ff.Command{
			newRunCommand(cfg, fs),
			newCreateCommand(cfg, fs),
			newDebugCommand(cfg, fs),
			newTestCommand(cfg, fs),
		},
	}
}

func newRunCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("run").SetParent(parent)
	return &ff.Command{
		Name:      "run",
		Usage:     "eerie run [FLAGS] <doc> [dir]",
		ShortHelp: "create the document's files in dir and check its command",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			doc, dir, err := docAndDir(args)
			if err != nil {
				return err
			}
			if err := cfg.run(ctx, doc, dir); err != nil {
				return fmt.Errorf("running: %w", err)
			}
			return nil
		},
	}
}

func (cfg *config) run(ctx context.Context, doc *eerie.Document, dir string) error {
	e := &eerie.Executor{}
	if cfg.verbose {
		e.Stdout, e.Stderr = cfg.stdout, cfg.stderr
	}
	res, err := e.Run(ctx, doc, dir)
	if err == nil || !cfg.verbose {
		return err
	}

	var mismatch *eerie.OutputMismatchError
	if errors.As(err, &mismatch) {
		fmt.Fprintln(cfg.stderr, mismatch.Diff())
	} else if res != nil {
		fmt.Fprintf(cfg.stderr, "exit status: %d\n", res.ExitCode)
	}
	return err
}

func newCreateCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("create").SetParent(parent)
	return &ff.Command{
		Name:      "create",
		Usage:     "eerie create [FLAGS] <doc> [dir]",
		ShortHelp: "create the document's files in dir without running anything",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			doc, dir, err := docAndDir(args)
			if err != nil {
				return err
			}
			if err := doc.Create(dir); err != nil {
				return fmt.Errorf("creating: %w", err)
			}
			if cfg.verbose {
				for _, f := range doc.Files {
					if !eerie.IsReserved(f.Name) {
						fmt.Fprintln(cfg.stdout, filepath.Join(dir, f.Name))
					}
				}
			}
			return nil
		},
	}
}

func newDebugCommand(cfg *config, parent *ff.FlagSet) *ff.Command {
	var asTxtar bool
	fs := ff.NewFlagSet("debug").SetParent(parent)
	fs.BoolVar(&asTxtar, 0, "txtar", "print the records as a txtar archive")

	return &ff.Command{
		Name:      "debug",
		Usage:     "eerie debug [FLAGS] <doc>",
		ShortHelp: "print the records parsed from a document",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one document required")
			}
			doc, err := eerie.ReadFile(args[0])
			if err != nil {
				return err
			}
			if asTxtar {
				_, err := cfg.stdout.Write(txtar.Format(doc.Archive()))
				return err
			}

			tw := tabwriter.NewWriter(cfg.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tLANGUAGE\tBYTES\tBODY")
			for _, f := range doc.Files {
				lang := f.Language
				if lang == "" {
					lang = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%q\n", f.Name, lang, len(f.Body), f.Body)
			}
			return tw.Flush()
		},
	}
}

// docAndDir reads the document named by args[0] and returns it with the
// target directory, args[1] or the current directory.
func docAndDir(args []string) (*eerie.Document, string, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, "", fmt.Errorf("usage: <doc> [dir]")
	}
	doc, err := eerie.ReadFile(args[0])
	if err != nil {
		return nil, "", err
	}
	dir := "."
	if len(args) == 2 {
		dir = args[1]
	}
	if info, err := os.Stat(dir); err != nil {
		return nil, "", fmt.Errorf("cannot access %s: %w", dir, err)
	} else if !info.IsDir() {
		return nil, "", fmt.Errorf("%s is not a directory", dir)
	}
	return doc, dir, nil
}
