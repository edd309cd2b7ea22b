// Package pushshift is a client for the Pushshift Reddit aggregation API and
// the record types it returns.
package pushshift

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a JSON object whose field order is preserved from decode to
// encode. Values are kept as raw JSON.
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

// Comment is a record returned by the comment search endpoint.
type Comment = Record

// Keys returns the field names in order.
func (r Record) Keys() []string { return r.keys }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// Get returns the raw JSON value of a field.
func (r Record) Get(key string) (json.RawMessage, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Text returns a string field's value. Non-string values are returned as
// their JSON text; missing fields and null return "".
func (r Record) Text(key string) string {
	raw, ok := r.values[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Set replaces a field's value in place, or appends the field if absent.
func (r *Record) Set(key string, value json.RawMessage) {
	if r.values == nil {
		r.values = make(map[string]json.RawMessage)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Clone returns a copy that can be modified independently.
func (r Record) Clone() Record {
	out := Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]json.RawMessage, len(r.values)),
	}
	for k, v := range r.values {
		out.values[k] = v
	}
	return out
}

// UnmarshalJSON decodes a JSON object keeping field order. A repeated key
// keeps its first position and its last value. null decodes to an empty
// record.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{}
	if isNull(data) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("pushshift: record: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("pushshift: record: expected key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("pushshift: record field %q: %w", key, err)
		}
		r.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON encodes the record with fields in order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		v := r.values[k]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Submission is a record from the submission search endpoint with the
// comments attached to it.
type Submission struct {
	Record
	Comments []Comment
}

// ID returns the submission's id field.
func (s Submission) ID() string { return s.Text("id") }

// AttachComments sets the submission's comments. A nil slice is stored as
// empty so it encodes as [].
func (s *Submission) AttachComments(comments []Comment) {
	if comments == nil {
		comments = []Comment{}
	}
	s.Comments = comments
}

// Full returns the submission's fields with "comments" set to the attached
// comments, in place if the API already sent that key, otherwise last.
func (s Submission) Full() (Record, error) {
	out := s.Record.Clone()
	comments := s.Comments
	if comments == nil {
		comments = []Comment{}
	}
	raw, err := marshalNoEscape(comments)
	if err != nil {
		return Record{}, err
	}
	out.Set("comments", raw)
	return out, nil
}

// MarshalJSON encodes the submission including its comments.
func (s Submission) MarshalJSON() ([]byte, error) {
	full, err := s.Full()
	if err != nil {
		return nil, err
	}
	return full.MarshalJSON()
}

// UnmarshalJSON decodes a submission. A "comments" array, if present, is
// decoded into Comments.
func (s *Submission) UnmarshalJSON(data []byte) error {
	*s = Submission{}
	if err := s.Record.UnmarshalJSON(data); err != nil {
		return err
	}
	raw, ok := s.Get("comments")
	if !ok || isNull(raw) {
		return nil
	}
	var comments []Comment
	if err := json.Unmarshal(raw, &comments); err != nil {
		// Not a comment list; leave it as a plain field.
		return nil
	}
	s.Comments = comments
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
