package pushshift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Pushshift API.
const DefaultBaseURL = "https://api.pushshift.io"

const (
	submissionSearchPath = "/reddit/search/submission/"
	commentIDsPath       = "/reddit/submission/comment_ids/{id}"
	commentSearchPath    = "/reddit/search/comment/"
)

// ErrDecode marks a response body that could not be decoded as JSON.
var ErrDecode = errors.New("malformed response body")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Code, e.URL)
}

// Config controls the client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond caps the request rate. Zero means unlimited.
	RequestsPerSecond float64
	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
}

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "pushshift-corpus/1.0"

// defaultConfig fills the zero fields of a Config passed to NewClient.
var defaultConfig = Config{
	BaseURL:   DefaultBaseURL,
	Timeout:   30 * time.Second,
	UserAgent: DefaultUserAgent,
}

// Client issues requests against the submission search, comment id and
// comment search endpoints.
type Client struct {
	rc      *resty.Client
	limiter *rate.Limiter
}

// NewClient creates a Client with the given config.
func NewClient(cfg Config) *Client {
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}
	// Both sides are Config, so Merge cannot fail.
	_ = mergo.Merge(&cfg, defaultConfig)
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		rc:      rc,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// SubmissionQuery selects submissions from one subreddit in the half-open
// window [After, Before).
type SubmissionQuery struct {
	Subreddit string
	After     int64
	Before    int64
	Size      int
	// NumComments is sent as-is; the API does not filter on it.
	NumComments int
}

func (q SubmissionQuery) params() map[string]string {
	return map[string]string{
		"subreddit":    q.Subreddit,
		"after":        strconv.FormatInt(q.After, 10),
		"before":       strconv.FormatInt(q.Before, 10),
		"size":         strconv.Itoa(q.Size),
		"num_comments": strconv.Itoa(q.NumComments),
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// SearchSubmissions returns one page of submissions in API order.
func (c *Client) SearchSubmissions(ctx context.Context, q SubmissionQuery) ([]Submission, error) {
	req := c.rc.R().SetQueryParams(q.params())
	subs, err := get[[]Submission](ctx, c, req, submissionSearchPath)
	if err != nil {
		return nil, fmt.Errorf("r/%s submissions: %w", q.Subreddit, err)
	}
	return subs, nil
}

// CommentIDs returns the ids of all comments on a submission. A missing or
// null data field yields no ids.
func (c *Client) CommentIDs(ctx context.Context, submissionID string) ([]string, error) {
	req := c.rc.R().SetPathParam("id", submissionID)
	ids, err := get[[]string](ctx, c, req, commentIDsPath)
	if err != nil {
		return nil, fmt.Errorf("comment ids for %s: %w", submissionID, err)
	}
	return ids, nil
}

// SearchComments fetches the given comments in one call, in API order. No
// request is made for an empty id list.
func (c *Client) SearchComments(ctx context.Context, ids []string) ([]Comment, error) {
	if len(ids) == 0 {
		return []Comment{}, nil
	}
	req := c.rc.R().SetQueryParam("ids", strings.Join(ids, ","))
	comments, err := get[[]Comment](ctx, c, req, commentSearchPath)
	if err != nil {
		return nil, fmt.Errorf("comments (%d ids): %w", len(ids), err)
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

func get[T any](ctx context.Context, c *Client, req *resty.Request, path string) (T, error) {
	var zero T
	if err := c.limiter.Wait(ctx); err != nil {
		return zero, err
	}
	resp, err := req.SetContext(ctx).Get(path)
	if err != nil {
		return zero, err
	}
	if !resp.IsSuccess() {
		return zero, &StatusError{Code: resp.StatusCode(), URL: resp.Request.URL}
	}

	var env envelope[T]
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return zero, fmt.Errorf("decode %s: %w: %w", path, ErrDecode, err)
	}
	return env.Data, nil
}
