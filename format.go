package eerie

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/tools/txtar"
)

// ErrUnrenderable is returned by Format for records that cannot be written
// back so that they parse to the same record.
var ErrUnrenderable = errors.New("record cannot be rendered")

// Format renders the document as markdown. Parsing the result yields the
// same records.
func (d *Document) Format() ([]byte, error) {
	var buf bytes.Buffer
	for i, f := range d.Files {
		if err := f.check(); err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "%s%s\n\n", headerMark, f.Name)

		if strings.HasSuffix(f.Body, "\n") && !strings.Contains(f.Body, fenceKeep) {
			fmt.Fprintf(&buf, "%s%s\n%s%s\n", fenceKeep, f.Language, f.Body, fenceKeep)
			continue
		}
		fmt.Fprintf(&buf, "%s%s\n%s\n%s\n", fenceTrim, f.Language, f.Body, fenceTrim)
	}
	return buf.Bytes(), nil
}

func (f File) check() error {
	switch {
	case f.Name == "" || f.Name != strings.TrimSpace(f.Name):
		return fmt.Errorf("%w: bad name %q", ErrUnrenderable, f.Name)
	case strings.ContainsAny(f.Name, "`\n") || strings.Contains(f.Name, headerMark):
		return fmt.Errorf("%w: bad name %q", ErrUnrenderable, f.Name)
	case f.Language != strings.TrimSpace(f.Language) || strings.ContainsAny(f.Language, "`\n"):
		return fmt.Errorf("%w: bad language %q of %q", ErrUnrenderable, f.Language, f.Name)
	case strings.Contains(f.Body, fenceTrim):
		return fmt.Errorf("%w: body of %q contains %s", ErrUnrenderable, f.Name, fenceTrim)
	}
	return nil
}

// Archive converts the document into a txtar archive. The language of each
// file is listed in the archive comment.
func (d *Document) Archive() *txtar.Archive {
	ar := &txtar.Archive{}
	var comment strings.Builder
	for _, f := range d.Files {
		if f.Language != "" {
			fmt.Fprintf(&comment, "%s: %s\n", f.Name, f.Language)
		}
		ar.Files = append(ar.Files, txtar.File{Name: f.Name, Data: []byte(f.Body)})
	}
	ar.Comment = []byte(comment.String())
	return ar
}
