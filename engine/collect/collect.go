// Package collect fetches submissions and their comments for a set of
// subreddits and a time window, and writes the raw JSON snapshot and the
// flattened long CSV.
package collect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WessleyAI/pushshift-corpus/engine/flatten"
	"github.com/WessleyAI/pushshift-corpus/engine/pushshift"
	"github.com/WessleyAI/pushshift-corpus/pkg/fn"
)

// LongTable is the table name used when the flattened rows are exported.
const LongTable = "comments_long"

// Config controls a collection run.
type Config struct {
	Subreddits []string
	// After and Before bound the half-open window [After, Before) in epoch
	// seconds.
	After  int64
	Before int64
	// PageSize caps submissions per subreddit.
	PageSize int
	// NumComments is passed through to the submission search unchanged.
	NumComments int

	OutDir   string
	JSONName string
	CSVName  string

	// RetryWait is the pause before the single retry of a failed decode.
	RetryWait time.Duration
	// ThrottleMin and ThrottleMax bound the random pause after each
	// submission.
	ThrottleMin time.Duration
	ThrottleMax time.Duration
}

// JSONPath returns the raw snapshot path.
func (c Config) JSONPath() string { return filepath.Join(c.OutDir, c.JSONName) }

// CSVPath returns the flattened table path.
func (c Config) CSVPath() string { return filepath.Join(c.OutDir, c.CSVName) }

// API is the subset of the aggregation API the fetcher uses.
type API interface {
	SearchSubmissions(ctx context.Context, q pushshift.SubmissionQuery) ([]pushshift.Submission, error)
	CommentIDs(ctx context.Context, submissionID string) ([]string, error)
	SearchComments(ctx context.Context, ids []string) ([]pushshift.Comment, error)
}

// Publisher receives every enriched submission once the files are written.
type Publisher interface {
	Publish(ctx context.Context, s pushshift.Submission) error
}

// TableWriter receives the flattened table once the CSV is written.
type TableWriter interface {
	WriteTable(ctx context.Context, name string, t flatten.Table) error
}

// Summary describes a finished run.
type Summary struct {
	RunID       string
	Submissions int
	Comments    int
	Rows        int
	Retries     int
	JSONPath    string
	CSVPath     string
}

// Fetcher runs the collection pipeline. It is single-threaded: every call
// blocks until the previous one finished.
type Fetcher struct {
	cfg       Config
	api       API
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
	rand      func() float64
	publisher Publisher
	tables    TableWriter
	retries   int
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithSleep replaces the pause function used for throttling and retries.
func WithSleep(s func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// WithRand replaces the [0,1) source used for throttle durations.
func WithRand(r func() float64) Option { return func(f *Fetcher) { f.rand = r } }

// WithPublisher publishes enriched submissions after the files are written.
func WithPublisher(p Publisher) Option { return func(f *Fetcher) { f.publisher = p } }

// WithTableWriter exports the flattened table after the CSV is written.
func WithTableWriter(w TableWriter) Option { return func(f *Fetcher) { f.tables = w } }

// New creates a Fetcher.
func New(cfg Config, api API, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:    cfg,
		api:    api,
		logger: slog.Default(),
		sleep:  fn.Sleep,
		rand:   rand.Float64,
	}
	for _, o := range opts {
		o(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Run collects, enriches and persists. The JSON snapshot is written before
// the CSV; a failure between the two leaves only the JSON file.
func (f *Fetcher) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	log := f.logger.With("run_id", runID)
	ctx, span := otel.Tracer("engine/collect").Start(ctx, "collect.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	f.retries = 0
	subs, err := f.Collect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}

	sum := Summary{
		RunID:       runID,
		Submissions: len(subs),
		Comments:    fn.Sum(subs, func(s pushshift.Submission) int { return len(s.Comments) }),
		Retries:     f.retries,
		JSONPath:    f.cfg.JSONPath(),
		CSVPath:     f.cfg.CSVPath(),
	}

	if err := os.MkdirAll(f.cfg.OutDir, 0o755); err != nil {
		return sum, fmt.Errorf("create output dir: %w", err)
	}
	if err := WriteJSON(sum.JSONPath, subs); err != nil {
		return sum, fmt.Errorf("write json: %w", err)
	}
	log.Info("wrote snapshot", "path", sum.JSONPath, "submissions", sum.Submissions)

	table, err := flatten.Flatten(subs)
	if err != nil {
		return sum, fmt.Errorf("flatten: %w", err)
	}
	if err := WriteCSV(sum.CSVPath, table); err != nil {
		return sum, fmt.Errorf("write csv: %w", err)
	}
	sum.Rows = table.Len()
	log.Info("wrote long table", "path", sum.CSVPath, "rows", sum.Rows, "columns", len(table.Columns))

	if f.tables != nil {
		if err := f.tables.WriteTable(ctx, LongTable, table); err != nil {
			return sum, fmt.Errorf("export table: %w", err)
		}
		log.Info("exported long table", "table", LongTable)
	}
	if f.publisher != nil {
		for _, s := range subs {
			if err := f.publisher.Publish(ctx, s); err != nil {
				log.Warn("publish failed", "id", s.ID(), "error", err)
			}
		}
	}
	return sum, nil
}

// Collect searches every subreddit in order and enriches each submission
// with its comments.
func (f *Fetcher) Collect(ctx context.Context) ([]pushshift.Submission, error) {
	all := []pushshift.Submission{}
	for _, sub := range f.cfg.Subreddits {
		subs, err := f.api.SearchSubmissions(ctx, pushshift.SubmissionQuery{
			Subreddit:   sub,
			After:       f.cfg.After,
			Before:      f.cfg.Before,
			Size:        f.cfg.PageSize,
			NumComments: f.cfg.NumComments,
		})
		if err != nil {
			return nil, err
		}
		f.logger.Info("fetched submissions", "subreddit", sub, "count", len(subs))
		all = append(all, subs...)
	}

	for i := range all {
		if err := f.enrich(ctx, &all[i]); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// enrich attaches comments to s. A decode failure on either lookup is
// retried once after RetryWait; anything else aborts.
func (f *Fetcher) enrich(ctx context.Context, s *pushshift.Submission) error {
	id := s.ID()
	ctx, span := otel.Tracer("engine/collect").Start(ctx, "collect.enrich",
		trace.WithAttributes(attribute.String("submission.id", id)))
	defer span.End()

	opts := fn.Once(f.cfg.RetryWait, func(err error) bool {
		if !errors.Is(err, pushshift.ErrDecode) {
			return false
		}
		f.retries++
		f.logger.Warn("comment lookup not decodable, retrying", "id", id, "wait", f.cfg.RetryWait, "error", err)
		return true
	})
	opts.Sleep = f.sleep

	comments, err := fn.Retry(ctx, opts, func(ctx context.Context) fn.Result[[]pushshift.Comment] {
		ids, err := f.api.CommentIDs(ctx, id)
		if err != nil {
			return fn.Err[[]pushshift.Comment](err)
		}
		return fn.FromPair(f.api.SearchComments(ctx, ids))
	}).Unwrap()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("enrich %s: %w", id, err)
	}
	s.AttachComments(comments)
	span.SetAttributes(attribute.Int("comments", len(comments)))

	return f.sleep(ctx, f.throttle())
}

func (f *Fetcher) throttle() time.Duration {
	spread := f.cfg.ThrottleMax - f.cfg.ThrottleMin
	if spread <= 0 {
		return f.cfg.ThrottleMin
	}
	return f.cfg.ThrottleMin + time.Duration(f.rand()*float64(spread))
}

// WriteJSON writes subs as a single JSON array, replacing any existing file.
func WriteJSON(path string, subs []pushshift.Submission) error {
	if subs == nil {
		subs = []pushshift.Submission{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(subs); err != nil {
		return err
	}
	return os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), 0o644)
}

// WriteCSV writes the table as CSV, replacing any existing file.
func WriteCSV(path string, t flatten.Table) error {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
