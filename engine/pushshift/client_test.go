package pushshift

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestSearchSubmissions(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reddit/search/submission/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"a1","title":"first","score":3},{"id":"a2","title":"second"}]}`))
	})

	subs, err := c.SearchSubmissions(context.Background(), SubmissionQuery{
		Subreddit: "tagpro",
		After:     1491001200,
		Before:    1491346800,
		Size:      500,
	})
	if err != nil {
		t.Fatalf("SearchSubmissions: %v", err)
	}

	wantQuery := map[string]string{
		"subreddit":    "tagpro",
		"after":        "1491001200",
		"before":       "1491346800",
		"size":         "500",
		"num_comments": "0",
	}
	if diff := cmp.Diff(wantQuery, gotQuery); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}

	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	if subs[0].ID() != "a1" || subs[1].ID() != "a2" {
		t.Errorf("order not preserved: %s, %s", subs[0].ID(), subs[1].ID())
	}
	if diff := cmp.Diff([]string{"id", "title", "score"}, subs[0].Keys()); diff != "" {
		t.Errorf("field order (-want +got):\n%s", diff)
	}
}

func TestCommentIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/reddit/submission/comment_ids/abc":
			w.Write([]byte(`{"data":["c1","c2"]}`))
		case "/reddit/submission/comment_ids/none":
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	})

	ids, err := c.CommentIDs(context.Background(), "abc")
	if err != nil {
		t.Fatalf("CommentIDs: %v", err)
	}
	if diff := cmp.Diff([]string{"c1", "c2"}, ids); diff != "" {
		t.Errorf("ids (-want +got):\n%s", diff)
	}

	ids, err = c.CommentIDs(context.Background(), "none")
	if err != nil {
		t.Fatalf("CommentIDs without data: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids, got %v", ids)
	}
}

func TestCommentIDsDecodeError(t *testing.T) {
	for name, body := range map[string]string{
		"empty": "",
		"html":  "<html>502 Bad Gateway</html>",
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.CommentIDs(context.Background(), "abc")
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"slow down"}`))
	})
	_, err := c.CommentIDs(context.Background(), "abc")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Errorf("code = %d", se.Code)
	}
	if errors.Is(err, ErrDecode) {
		t.Error("status errors must not be decode errors")
	}
}

func TestSearchComments(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/reddit/search/comment/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "c1,c2" {
			t.Errorf("ids = %q", got)
		}
		w.Write([]byte(`{"data":[{"id":"c1","body":"hello"},{"id":"c2","body":"world"}]}`))
	})

	comments, err := c.SearchComments(context.Background(), []string{"c1", "c2"})
	if err != nil {
		t.Fatalf("SearchComments: %v", err)
	}
	if len(comments) != 2 || comments[1].Text("body") != "world" {
		t.Fatalf("unexpected comments: %+v", comments)
	}

	empty, err := c.SearchComments(context.Background(), nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty ids: %v %v", empty, err)
	}
	if calls != 1 {
		t.Errorf("expected one request, got %d", calls)
	}
}

func TestSearchCommentsDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"c1","body":"trunc`))
	})
	comments, err := c.SearchComments(context.Background(), []string{"c1"})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if comments != nil {
		t.Errorf("expected no comments, got %v", comments)
	}
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.CommentIDs(ctx, "abc"); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestNewClientFillsDefaults(t *testing.T) {
	for _, tc := range []struct {
		name string
		ua   string
		want string
	}{
		{"default", "", DefaultUserAgent},
		{"custom", "corpus-test/2.0", "corpus-test/2.0"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("User-Agent")
				w.Write([]byte(`{"data":[]}`))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL, UserAgent: tc.ua, Timeout: -1, HTTPClient: srv.Client()})
			if _, err := c.CommentIDs(context.Background(), "abc"); err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("User-Agent = %q, want %q", got, tc.want)
			}
		})
	}
}
