package flatten

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/WessleyAI/pushshift-corpus/engine/pushshift"
)

func submission(t *testing.T, js string, comments ...string) pushshift.Submission {
	t.Helper()
	var s pushshift.Submission
	if err := json.Unmarshal([]byte(js), &s); err != nil {
		t.Fatalf("submission %s: %v", js, err)
	}
	cs := make([]pushshift.Comment, len(comments))
	for i, c := range comments {
		if err := json.Unmarshal([]byte(c), &cs[i]); err != nil {
			t.Fatalf("comment %s: %v", c, err)
		}
	}
	s.AttachComments(cs)
	return s
}

func TestFlattenOneRowPerComment(t *testing.T) {
	subs := []pushshift.Submission{
		submission(t, `{"id":"p1","title":"first"}`,
			`{"id":"c1","body":"a"}`,
			`{"id":"c2","body":"b"}`),
		submission(t, `{"id":"p2","title":"empty"}`),
		submission(t, `{"id":"p3","title":"third"}`,
			`{"id":"c3","body":"c"}`),
	}

	table, err := Flatten(subs)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}

	wantCols := []string{"post_id", "post_title", "post_comments", "comment_id", "comment_body"}
	if diff := cmp.Diff(wantCols, table.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	want := [][]string{
		{"p1", "first", `{"id":"c1","body":"a"}`, "c1", "a"},
		{"p1", "first", `{"id":"c2","body":"b"}`, "c2", "b"},
		{"p3", "third", `{"id":"c3","body":"c"}`, "c3", "c"},
	}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestFlattenRowCountMatchesComments(t *testing.T) {
	var subs []pushshift.Submission
	total := 0
	for i := 0; i < 6; i++ {
		var comments []string
		for j := 0; j < i%3; j++ {
			comments = append(comments, `{"id":"c","body":"x"}`)
		}
		total += len(comments)
		subs = append(subs, submission(t, `{"id":"p"}`, comments...))
	}
	table, err := Flatten(subs)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != total {
		t.Fatalf("rows = %d, want %d", table.Len(), total)
	}
}

func TestFlattenUnionColumns(t *testing.T) {
	subs := []pushshift.Submission{
		submission(t, `{"id":"p1","score":1}`, `{"id":"c1","body":"a"}`),
		submission(t, `{"id":"p2","flair":"x"}`, `{"id":"c2","edited":false,"body":"b"}`),
	}
	table, err := Flatten(subs)
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{
		"post_id", "post_score", "post_comments", "post_flair",
		"comment_id", "comment_body", "comment_edited",
	}
	if diff := cmp.Diff(wantCols, table.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	want := [][]string{
		{"p1", "1", `{"id":"c1","body":"a"}`, "", "c1", "a", ""},
		{"p2", "", `{"id":"c2","edited":false,"body":"b"}`, "x", "c2", "b", "False"},
	}
	if diff := cmp.Diff(want, table.Rows); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestFlattenNormalizesNestedComment(t *testing.T) {
	subs := []pushshift.Submission{
		submission(t, `{"id":"p1","media":{"type":"x"}}`,
			`{"id":"c1","gildings":{"gid_1":2,"extra":{"deep":true}},"empty":{},"awards":[1,2],"body":"a"}`),
	}
	table, err := Flatten(subs)
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{
		"post_id", "post_media", "post_comments",
		"comment_id", "comment_gildings.gid_1", "comment_gildings.extra.deep", "comment_awards", "comment_body",
	}
	if diff := cmp.Diff(wantCols, table.Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	row := table.Rows[0]
	if row[1] != `{"type":"x"}` {
		t.Errorf("post objects stay whole, got %q", row[1])
	}
	if row[4] != "2" || row[5] != "True" || row[6] != "[1,2]" {
		t.Errorf("unexpected nested cells %q", row[4:7])
	}
}

func TestFlattenEmpty(t *testing.T) {
	table, err := Flatten(nil)
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 || len(table.Columns) != 0 {
		t.Fatalf("expected empty table, got %+v", table)
	}
}

func TestCell(t *testing.T) {
	cases := map[string]string{
		`"text"`:        "text",
		`"a\nb"`:        "a\nb",
		`12`:            "12",
		`1.5`:           "1.5",
		`true`:          "True",
		`false`:         "False",
		`null`:          "",
		``:              "",
		`[ 1, "x" ]`:    `[1,"x"]`,
		`{"a": "<b>"}`:  `{"a":"<b>"}`,
	}
	for in, want := range cases {
		got, err := Cell(json.RawMessage(in))
		if err != nil {
			t.Errorf("Cell(%s): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Cell(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	table := Table{
		Columns: []string{"post_id", "comment_body"},
		Rows: [][]string{
			{"p1", "plain"},
			{"p1", "has, comma"},
			{"p2", "line\nbreak"},
		},
	}
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"post_id,comment_body",
		"p1,plain",
		`p1,"has, comma"`,
		"p2,\"line\nbreak\"",
		"",
	}, "\n")
	if buf.String() != want {
		t.Errorf("csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestColumn(t *testing.T) {
	table := Table{Columns: []string{"a", "b"}}
	if i, ok := table.Column("b"); !ok || i != 1 {
		t.Errorf("Column(b) = %d, %v", i, ok)
	}
	if _, ok := table.Column("z"); ok {
		t.Error("Column(z) should be missing")
	}
}
