/*
Package eerie runs literate test documents: markdown files that describe a
tree of files, a command, its standard input and the output and exit status
it is expected to produce.

A document is a sequence of records. Each record is a "## name" header
followed by a fenced block:

	## hello.txt

	```text
	hi
	```

The text after the opening backticks is the record's language. The body is
everything between the end of the opening line and the closing fence. Blocks
are fenced with three or four backticks, and the closing fence must have the
same width as the opening one. A three-backtick block keeps its body as is;
a four-backtick block drops one trailing newline, so that files without a
final newline can still have the closing fence on a line of its own. Four
backticks also let a body contain three.

Prose between records is ignored, and so is everything after the last
record that parses.

# Reserved names

Records with the following names configure the run and are never written
to disk:

	command    the program and its arguments, split on single spaces
	stdin      piped to the command's standard input
	stdout     expected standard output, compared byte for byte
	stderr     expected standard error, compared byte for byte
	status     expected exit status; overrides the must-exit-zero rule
	success    documents intent, no effect

Every other record is created as a file, relative to the target directory.

# Running documents

A single document is parsed with [Parse] or [ReadFile] and executed with
[Document.Run] or an [Executor]:

	doc, err := eerie.ReadFile("cat.eer.md")
	if err != nil {
		return err
	}
	_, err = doc.Run(ctx, dir)

To run a directory of documents as Go tests, call [Run]:

	func TestDocs(t *testing.T) {
		eerie.Run(t, eerie.Params{
			Dir: "testdata",
		})
	}

Each document matching [DefaultPattern] runs as a subtest in a fresh work
directory. Use [Params].Setup to add environment variables:

	eerie.Run(t, eerie.Params{
		Dir: "testdata",
		Setup: func(env *eerie.Env) error {
			env.Setenv("SERVER", srv.URL)
			return nil
		},
	})

# Projects

[RunWithProject] additionally reads an optional eerie.toml from the
directory and picks up conventional files:

	bin/           executables added to PATH; foo.sh is also callable as foo
	setup.sh       run once before all documents
	teardown.sh    run once after all documents

eerie.toml may override any of these and set per-document hooks:

	bin = "tools"
	pattern = "*.md"

	[test]
	setup = "scripts/before.sh"
	teardown = "scripts/after.sh"

# Command-line tool

	eerie run <doc> [dir]       create the files in dir and check the command
	eerie create <doc> [dir]    create the files only
	eerie debug <doc>           print the parsed records
	eerie test <dir|doc>        run documents in their own work directories

Environment variables with the EERIE_ prefix set flags.
*/
package eerie
