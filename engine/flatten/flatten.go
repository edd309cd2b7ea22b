// Package flatten turns submissions with nested comments into a long table
// holding one row per (submission, comment) pair.
package flatten

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/WessleyAI/pushshift-corpus/engine/pushshift"
	"github.com/WessleyAI/pushshift-corpus/pkg/fn"
)

const (
	// PostPrefix is prepended to every submission column.
	PostPrefix = "post_"
	// CommentPrefix is prepended to every comment column.
	CommentPrefix = "comment_"
	// CommentsField is the submission field that holds the exploded comment.
	CommentsField = "comments"
	// nestedSep joins nested object keys in comment columns.
	nestedSep = "."
)

// Table is a header plus rows of rendered cells aligned to it.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Column returns the index of a column.
func (t Table) Column(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// field is one rendered column of a single row before alignment.
type field struct {
	key  string
	cell string
}

// columnSet is an insertion-ordered set of column names.
type columnSet struct {
	order []string
	seen  map[string]bool
}

func (s *columnSet) add(name string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if !s.seen[name] {
		s.seen[name] = true
		s.order = append(s.order, name)
	}
}

// Flatten explodes submissions into one row per comment. Submissions without
// comments produce no rows. Submission columns come first, in order of first
// appearance across all submissions; comment columns follow, in order of
// first appearance across all comments.
func Flatten(subs []pushshift.Submission) (Table, error) {
	var postCols, commentCols columnSet

	fulls := make([]pushshift.Record, len(subs))
	for i, s := range subs {
		full, err := s.Full()
		if err != nil {
			return Table{}, fmt.Errorf("submission %s: %w", s.ID(), err)
		}
		fulls[i] = full
		for _, k := range full.Keys() {
			postCols.add(PostPrefix + k)
		}
	}

	type pair struct {
		post    pushshift.Record
		comment pushshift.Comment
	}
	pairs := fn.FlatMap(indexes(subs), func(i int) []pair {
		return fn.Map(subs[i].Comments, func(c pushshift.Comment) pair {
			return pair{post: fulls[i], comment: c}
		})
	})

	rows := make([][]field, 0, len(pairs))
	for _, p := range pairs {
		row, err := explode(p.post, p.comment)
		if err != nil {
			return Table{}, err
		}
		for _, f := range row {
			if strings.HasPrefix(f.key, CommentPrefix) {
				commentCols.add(f.key)
			}
		}
		rows = append(rows, row)
	}

	t := Table{Columns: append(postCols.order, commentCols.order...)}
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c] = i
	}
	t.Rows = make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(t.Columns))
		for _, f := range row {
			cells[index[f.key]] = f.cell
		}
		t.Rows[i] = cells
	}
	return t, nil
}

func indexes[T any](items []T) []int {
	out := make([]int, len(items))
	for i := range items {
		out[i] = i
	}
	return out
}

// explode renders one (submission, comment) row. The submission's comments
// field holds only this comment.
func explode(post pushshift.Record, comment pushshift.Comment) ([]field, error) {
	var row []field
	for _, k := range post.Keys() {
		raw, _ := post.Get(k)
		if k == CommentsField {
			b, err := comment.MarshalJSON()
			if err != nil {
				return nil, err
			}
			raw = b
		}
		cell, err := Cell(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		row = append(row, field{key: PostPrefix + k, cell: cell})
	}

	normalized, err := normalize(comment, "")
	if err != nil {
		return nil, err
	}
	for _, f := range normalized {
		row = append(row, field{key: CommentPrefix + f.key, cell: f.cell})
	}
	return row, nil
}

// normalize flattens nested objects into dotted keys. Arrays are left as
// values and empty objects vanish.
func normalize(r pushshift.Record, prefix string) ([]field, error) {
	var out []field
	for _, k := range r.Keys() {
		raw, _ := r.Get(k)
		key := prefix + k
		if isObject(raw) {
			var nested pushshift.Record
			if err := json.Unmarshal(raw, &nested); err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			sub, err := normalize(nested, key+nestedSep)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		cell, err := Cell(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out = append(out, field{key: key, cell: cell})
	}
	return out, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Cell renders a raw JSON value as a CSV cell: strings verbatim, numbers as
// written, booleans as True/False, null as empty, and objects or arrays as
// compact JSON.
func Cell(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", nil
	case 't':
		return "True", nil
	case 'f':
		return "False", nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		return string(trimmed), nil
	}
}

// WriteCSV writes the header and rows with no index column.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}
