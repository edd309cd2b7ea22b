package commands

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/pushshift-corpus/engine/collect"
	"github.com/WessleyAI/pushshift-corpus/engine/pushshift"
	"github.com/WessleyAI/pushshift-corpus/engine/store"
	"github.com/WessleyAI/pushshift-corpus/pkg/natsutil"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetches submissions and comments, writing the JSON snapshot and the long CSV.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.fetch(cmd.Context())
			return err
		},
	}
}

func (a *app) collectConfig() (collect.Config, error) {
	after, before, err := a.cfg.Window()
	if err != nil {
		return collect.Config{}, err
	}
	return collect.Config{
		Subreddits:  a.cfg.Subreddits,
		After:       after,
		Before:      before,
		PageSize:    a.cfg.PageSize,
		NumComments: a.cfg.NumComments,
		OutDir:      a.cfg.OutDir,
		JSONName:    a.cfg.JSONName,
		CSVName:     a.cfg.CSVName,
		RetryWait:   a.cfg.RetryWait.Std(),
		ThrottleMin: a.cfg.ThrottleMin.Std(),
		ThrottleMax: a.cfg.ThrottleMax.Std(),
	}, nil
}

func (a *app) fetch(ctx context.Context) (collect.Summary, error) {
	cc, err := a.collectConfig()
	if err != nil {
		return collect.Summary{}, err
	}

	client := pushshift.NewClient(pushshift.Config{
		BaseURL:           a.cfg.BaseURL,
		Timeout:           a.cfg.Timeout.Std(),
		UserAgent:         a.cfg.UserAgent,
		RequestsPerSecond: a.cfg.RequestsPerSecond,
	})
	opts := []collect.Option{collect.WithLogger(a.logger)}

	var pub *natsutil.Publisher[pushshift.Submission]
	if a.cfg.NATSURL != "" {
		nc, err := nats.Connect(a.cfg.NATSURL, nats.Name(serviceName))
		if err != nil {
			return collect.Summary{}, fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		pub = natsutil.NewPublisher[pushshift.Submission](nc, a.cfg.NATSSubject)
		pub.MsgID = pushshift.Submission.ID
		opts = append(opts, collect.WithPublisher(pub))
		a.logger.Info("publishing to NATS", "subject", pub.Subject())
	}

	if a.cfg.SQLitePath != "" {
		st, err := store.Open(ctx, a.cfg.SQLitePath)
		if err != nil {
			return collect.Summary{}, err
		}
		defer st.Close()
		opts = append(opts, collect.WithTableWriter(st))
	}

	sum, err := collect.New(cc, client, opts...).Run(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch: %w", err)
	}
	if pub != nil {
		if err := pub.Flush(ctx); err != nil {
			a.logger.Warn("nats flush failed", "error", err)
		}
	}

	a.logger.Info("fetch complete",
		"run_id", sum.RunID,
		"submissions", sum.Submissions,
		"comments", sum.Comments,
		"rows", sum.Rows,
		"retries", sum.Retries,
		"json", sum.JSONPath,
		"csv", sum.CSVPath,
	)
	return sum, nil
}
