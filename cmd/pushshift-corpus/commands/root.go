package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/pushshift-corpus/pkg/config"
	"github.com/WessleyAI/pushshift-corpus/pkg/telemetry"
)

const serviceName = "pushshift-corpus"

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg    config.Config
	tel    telemetry.Telemetry
	logger *slog.Logger

	configPath string
	logJSON    bool
	debug      bool

	subreddits []string
	start      string
	end        string
	timezone   string
	outDir     string
	baseURL    string
	rps        float64
	natsURL    string
	subject    string
	sqlitePath string
	otlpURL    string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "pushshift-corpus collects subreddit comments from Pushshift into CSV and plain text.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "json5 config file (default "+config.DefaultFile+" if present)")
	f.BoolVar(&a.logJSON, "log-json", false, "log as JSON instead of text")
	f.BoolVar(&a.debug, "debug", false, "enable debug logging")
	f.StringSliceVar(&a.subreddits, "subreddits", nil, "subreddits to search, in order")
	f.StringVar(&a.start, "start", "", "window start (2006-01-02 or RFC 3339), inclusive")
	f.StringVar(&a.end, "end", "", "window end (2006-01-02 or RFC 3339), exclusive")
	f.StringVar(&a.timezone, "timezone", "", "IANA zone window dates are read in (default local)")
	f.StringVar(&a.outDir, "out-dir", "", "directory the output files are written to")
	f.StringVar(&a.baseURL, "base-url", "", "aggregation API base URL")
	f.Float64Var(&a.rps, "rps", 0, "maximum API requests per second (0 = unlimited)")
	f.StringVar(&a.natsURL, "nats", "", "NATS URL to publish enriched submissions to")
	f.StringVar(&a.subject, "subject", "", "NATS subject for enriched submissions")
	f.StringVar(&a.sqlitePath, "sqlite", "", "SQLite database to export the long table into")
	f.StringVar(&a.otlpURL, "otlp", "", "OTLP/HTTP traces endpoint")

	root.AddCommand(newFetchCmd(a), newExtractCmd(a), newRunCmd(a))
	return root
}

// Execute runs the command tree with args. Pending spans are flushed before
// it returns.
func Execute(ctx context.Context, args []string) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if serr := a.shutdown(); serr != nil && err == nil {
		err = fmt.Errorf("telemetry shutdown: %w", serr)
	}
	return err
}

// ExecuteContext runs the command tree with the process arguments and exits
// non-zero on failure.
func ExecuteContext(ctx context.Context) {
	if err := Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if a.debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if a.logJSON {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		a.logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	slog.SetDefault(a.logger)

	cfg, err := config.Load(a.configPath, a.configPath != "")
	if err != nil {
		return err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	tel, err := telemetry.Setup(cmd.Context(), serviceName, cfg.OTLPURL)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	a.tel = tel
	if tel.Enabled() {
		a.logger.Debug("exporting traces", "endpoint", cfg.OTLPURL)
	}
	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("subreddits") {
		cfg.Subreddits = a.subreddits
	}
	if changed("start") {
		cfg.Start = a.start
	}
	if changed("end") {
		cfg.End = a.end
	}
	if changed("timezone") {
		cfg.Timezone = a.timezone
	}
	if changed("out-dir") {
		cfg.OutDir = a.outDir
	}
	if changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if changed("rps") {
		cfg.RequestsPerSecond = a.rps
	}
	if changed("nats") {
		cfg.NATSURL = a.natsURL
	}
	if changed("subject") {
		cfg.NATSSubject = a.subject
	}
	if changed("sqlite") {
		cfg.SQLitePath = a.sqlitePath
	}
	if changed("otlp") {
		cfg.OTLPURL = a.otlpURL
	}
}

func (a *app) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.tel.Shutdown(ctx)
}
