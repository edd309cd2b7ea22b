package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrQuote reports a quoted field that never closes.
var ErrQuote = errors.New("unterminated quoted field")

// recordReader reads comma separated records with double-quote escaping.
// Unlike encoding/csv it keeps carriage returns inside quoted fields, so a
// cell holding "\r\n" comes back byte for byte. Record terminators may be
// "\n" or "\r\n"; blank lines are skipped.
type recordReader struct {
	r    *bufio.Reader
	line int
}

func newRecordReader(r io.Reader) *recordReader {
	return &recordReader{r: bufio.NewReader(r), line: 1}
}

// Read returns the next record, or io.EOF once the input is exhausted.
func (rr *recordReader) Read() ([]string, error) {
	var (
		fields    []string
		field     strings.Builder
		inQuotes  bool
		wasQuoted bool
		started   bool
	)
	start := rr.line
	flush := func() {
		fields = append(fields, field.String())
		field.Reset()
		wasQuoted = false
	}

	for {
		b, err := rr.r.ReadByte()
		if err == io.EOF {
			if inQuotes {
				return nil, fmt.Errorf("line %d: %w", start, ErrQuote)
			}
			if !started {
				return nil, io.EOF
			}
			flush()
			return fields, nil
		}
		if err != nil {
			return nil, err
		}

		if inQuotes {
			switch b {
			case '"':
				if next, err := rr.r.Peek(1); err == nil && next[0] == '"' {
					rr.r.ReadByte()
					field.WriteByte('"')
					continue
				}
				inQuotes = false
			case '\n':
				rr.line++
				field.WriteByte(b)
			default:
				field.WriteByte(b)
			}
			continue
		}

		switch b {
		case '"':
			started = true
			if field.Len() == 0 && !wasQuoted {
				inQuotes, wasQuoted = true, true
				continue
			}
			field.WriteByte(b)
		case ',':
			started = true
			flush()
		case '\r':
			if next, err := rr.r.Peek(1); err == nil && next[0] == '\n' {
				continue
			}
			started = true
			field.WriteByte(b)
		case '\n':
			rr.line++
			if !started {
				start = rr.line
				continue
			}
			flush()
			return fields, nil
		default:
			started = true
			field.WriteByte(b)
		}
	}
}
