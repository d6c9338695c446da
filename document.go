package eerie

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	fenceKeep  = "```"  // body kept byte for byte
	fenceTrim  = "````" // one trailing newline of the body is dropped
	headerMark = "## "
)

// Reserved record names. They configure execution and are never written to disk.
const (
	NameStdin   = "stdin"
	NameStdout  = "stdout"
	NameStderr  = "stderr"
	NameCommand = "command"
	NameStatus  = "status"
	NameSuccess = "success"
)

var reserved = map[string]bool{
	NameStdin:   true,
	NameStdout:  true,
	NameStderr:  true,
	NameCommand: true,
	NameStatus:  true,
	NameSuccess: true,
}

// IsReserved reports whether name is one of the reserved record names.
func IsReserved(name string) bool {
	return reserved[name]
}

// Parser errors.
var (
	ErrMissingOpenFence  = errors.New("missing opening fence")
	ErrMissingCloseFence = errors.New("missing closing fence")
	ErrBadName           = errors.New("missing or empty record name")
	ErrBadInfoString     = errors.New("unterminated info string")
)

// File is one named block of a document.
type File struct {
	Name     string
	Language string // info string of the opening fence; empty if none
	Body     string
}

// Document is the ordered list of files found in a document.
// Duplicate names are allowed; lookups return the first match.
type Document struct {
	Files []File
}

// ParseFile parses the first file record of text and returns it together
// with the unconsumed remainder of text.
func ParseFile(text string) (File, string, error) {
	fence, at, ok := firstOf(text, fenceKeep, fenceTrim)
	if !ok {
		return File{}, text, ErrMissingOpenFence
	}

	header, rest := text[:at], text[at:]
	rest, _ = trimPrefix(rest, fence)

	name, ok := parseName(header)
	if !ok {
		return File{}, text, ErrBadName
	}

	content, tail, ok := strings.Cut(rest, fence)
	if !ok {
		return File{}, text, fmt.Errorf("%w for %q", ErrMissingCloseFence, name)
	}

	info, _, _ := strings.Cut(content, "\n")
	body, ok := dropFirstLine(content)
	if !ok {
		return File{}, text, fmt.Errorf("%w for %q", ErrBadInfoString, name)
	}
	if fence == fenceTrim {
		if trimmed, ok := trimSuffix(body, "\n"); ok {
			body = trimmed
		}
	}

	return File{
		Name:     name,
		Language: strings.TrimSpace(info),
		Body:     body,
	}, tail, nil
}

// parseName extracts the record name from the text preceding a fence: the
// rest of the line following the last header marker.
func parseName(header string) (string, bool) {
	i := strings.LastIndex(header, headerMark)
	if i < 0 {
		return "", false
	}
	line, _, _ := strings.Cut(header[i+len(headerMark):], "\n")
	name := strings.TrimSpace(line)
	return name, name != ""
}

// Parse parses every file record of text. Parsing stops at the first record
// that fails to parse; the text from there on is returned as the tail. It is
// an error only if not a single record could be parsed.
func Parse(text string) (*Document, string, error) {
	doc := &Document{}
	rest := text
	for {
		f, tail, err := ParseFile(rest)
		if err != nil {
			if len(doc.Files) == 0 {
				return nil, text, err
			}
			return doc, rest, nil
		}
		doc.Files = append(doc.Files, f)
		rest = tail
	}
}

// ReadFile reads and parses the document stored at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, _, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// Get returns the first file named name.
func (d *Document) Get(name string) (File, bool) {
	for _, f := range d.Files {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

func (d *Document) body(name string) (string, bool) {
	f, ok := d.Get(name)
	return f.Body, ok
}

// Stdin returns the body of the stdin record.
func (d *Document) Stdin() (string, bool) { return d.body(NameStdin) }

// Stdout returns the expected standard output.
func (d *Document) Stdout() (string, bool) { return d.body(NameStdout) }

// Stderr returns the expected standard error.
func (d *Document) Stderr() (string, bool) { return d.body(NameStderr) }

// Command returns the trimmed body of the command record.
func (d *Document) Command() (string, bool) {
	body, ok := d.body(NameCommand)
	return strings.TrimSpace(body), ok
}

// Args splits the command on ASCII spaces. Quotes and other shell syntax
// are not interpreted.
func (d *Document) Args() ([]string, error) {
	cmd, ok := d.Command()
	if !ok || cmd == "" {
		return nil, ErrNoCommand
	}
	return strings.Split(cmd, " "), nil
}

// Status returns the expected exit status, if the document has one.
func (d *Document) Status() (code int, ok bool, err error) {
	body, ok := d.body(NameStatus)
	if !ok {
		return 0, false, nil
	}
	s := strings.TrimSpace(body)
	code, err = strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("%w: %q", ErrBadStatus, s)
	}
	return code, true, nil
}
