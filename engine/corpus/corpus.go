// Package corpus extracts the comment text column of a flattened long table
// into a plain-text corpus.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// BodyColumn is the column holding comment text.
const BodyColumn = "comment_body"

// Sentinel errors returned by Extract.
var (
	ErrFileNotFound  = errors.New("file not found")
	ErrMissingColumn = errors.New("missing column")
)

// ColumnError reports a column the input lacks.
type ColumnError struct {
	Path   string
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Path, ErrMissingColumn, e.Column)
}

func (e *ColumnError) Unwrap() error { return ErrMissingColumn }

// notFoundError keeps both ErrFileNotFound and the underlying fs error
// reachable through errors.Is.
type notFoundError struct{ err error }

func (e *notFoundError) Error() string   { return fmt.Sprintf("%s: %v", ErrFileNotFound, e.err) }
func (e *notFoundError) Unwrap() []error { return []error{ErrFileNotFound, e.err} }

// Extract reads csvPath and writes every comment_body value, in row order,
// to outPath. Values are written back to back; no separator is added, so a
// value without its own trailing newline runs into the next one. It returns
// the number of values written.
func Extract(csvPath, outPath string) (int, error) {
	in, err := os.Open(csvPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, &notFoundError{err: err}
		}
		return 0, err
	}
	defer in.Close()

	values, err := Column(in, BodyColumn)
	if err != nil {
		var ce *ColumnError
		if errors.As(err, &ce) {
			ce.Path = csvPath
		}
		return 0, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, err
	}
	n, err := Write(out, values)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Column reads a CSV with a header row and returns one column's values in
// row order. Quoted values are returned exactly as written, carriage returns
// included.
func Column(r io.Reader, name string) ([]string, error) {
	cr := newRecordReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, &ColumnError{Column: name}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := -1
	for i, h := range header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &ColumnError{Column: name}
	}

	var values []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(values)+1, err)
		}
		if idx < len(rec) {
			values = append(values, rec[idx])
		} else {
			values = append(values, "")
		}
	}
	return values, nil
}

// Write writes values back to back with no separator.
func Write(w io.Writer, values []string) (int, error) {
	bw := bufio.NewWriter(w)
	for i, v := range values {
		if _, err := bw.WriteString(v); err != nil {
			return i, err
		}
	}
	return len(values), bw.Flush()
}
