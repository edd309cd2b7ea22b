// Package config loads collection settings. Compiled-in defaults are
// overridden, in increasing priority, by a json5 file, its .local variant, a
// .env file and PUSHSHIFT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/titanous/json5"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "pushshift-corpus.json5"

const dateLayout = "2006-01-02"

// Duration is a time.Duration read from strings like "5s" or "50ms".
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"'`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every setting of a run.
type Config struct {
	Subreddits []string `json:"subreddits"`
	// Start and End are dates (2006-01-02) or RFC 3339 timestamps bounding
	// the half-open window [Start, End).
	Start string `json:"start"`
	End   string `json:"end"`
	// Timezone names the IANA zone dates are read in. Empty means local.
	Timezone    string `json:"timezone"`
	PageSize    int    `json:"page_size"`
	NumComments int    `json:"num_comments"`

	OutDir   string `json:"out_dir"`
	JSONName string `json:"json_name"`
	CSVName  string `json:"csv_name"`
	TextName string `json:"text_name"`

	BaseURL           string   `json:"base_url"`
	UserAgent         string   `json:"user_agent"`
	Timeout           Duration `json:"timeout"`
	RequestsPerSecond float64  `json:"requests_per_second"`
	RetryWait         Duration `json:"retry_wait"`
	ThrottleMin       Duration `json:"throttle_min"`
	ThrottleMax       Duration `json:"throttle_max"`

	NATSURL     string `json:"nats_url"`
	NATSSubject string `json:"nats_subject"`
	SQLitePath  string `json:"sqlite_path"`
	OTLPURL     string `json:"otlp_endpoint"`
}

// Defaults returns the built-in settings: r/tagpro and r/mylittlepony from
// 2017-04-01 up to 2017-04-05, written under ./data.
func Defaults() Config {
	return Config{
		Subreddits: []string{"tagpro", "mylittlepony"},
		Start:      "2017-04-01",
		End:        "2017-04-05",
		PageSize:   500,

		OutDir:   "data",
		JSONName: "reddit_tagpro-mylittlepony_01042017-04042017.json",
		CSVName:  "reddit_tagpro-mylittlepony_01042017-04042017_long.csv",
		TextName: "reddit_comments.txt",

		BaseURL:     "https://api.pushshift.io",
		UserAgent:   "pushshift-corpus/1.0",
		Timeout:     Duration(30 * time.Second),
		RetryWait:   Duration(5 * time.Second),
		ThrottleMin: Duration(50 * time.Millisecond),
		ThrottleMax: Duration(100 * time.Millisecond),

		NATSSubject: "pushshift.corpus.submissions",
	}
}

// Load builds a Config from defaults, the config file at path (and its
// .local override), the .env file and the environment. A missing file is
// only an error when required is set. The result is not validated so that
// callers can apply flags first.
func Load(path string, required bool) (Config, error) {
	cfg := Defaults()
	if path == "" {
		path = DefaultFile
	}

	fileCfg, err := ReadFile(path, cfg)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if required {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	case err != nil:
		return cfg, fmt.Errorf("config %s: %w", path, err)
	default:
		cfg = fileCfg
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadFile decodes a json5 config and then <name>.local.<ext> onto base.
// Keys present in a file win, including explicit zeros such as retry_wait: 0;
// absent keys keep the value from base. It returns os.ErrNotExist when
// neither file exists.
func ReadFile(name string, base Config) (Config, error) {
	out := base
	out.Subreddits = append([]string(nil), base.Subreddits...)
	found := false

	data, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return base, err
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return base, err
		}
		found = true
	}

	ext := filepath.Ext(name)
	local := strings.TrimSuffix(name, ext) + ".local" + ext
	override, err := os.ReadFile(local)
	if err != nil && !os.IsNotExist(err) {
		return base, err
	}
	if len(override) > 0 {
		if err := json5.Unmarshal(override, &out); err != nil {
			return base, err
		}
		slog.Info("merging config with local overrides", "local", local)
		found = true
	}

	if !found {
		return base, os.ErrNotExist
	}
	return out, nil
}

// ApplyEnv overrides fields from PUSHSHIFT_* variables and the standard
// OTEL_EXPORTER_OTLP_ENDPOINT.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PUSHSHIFT_START", &cfg.Start)
	str("PUSHSHIFT_END", &cfg.End)
	str("PUSHSHIFT_TIMEZONE", &cfg.Timezone)
	str("PUSHSHIFT_OUT_DIR", &cfg.OutDir)
	str("PUSHSHIFT_BASE_URL", &cfg.BaseURL)
	str("PUSHSHIFT_USER_AGENT", &cfg.UserAgent)
	str("PUSHSHIFT_NATS_URL", &cfg.NATSURL)
	str("PUSHSHIFT_NATS_SUBJECT", &cfg.NATSSubject)
	str("PUSHSHIFT_SQLITE", &cfg.SQLitePath)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTLPURL)

	if v, ok := lookup("PUSHSHIFT_SUBREDDITS"); ok && v != "" {
		cfg.Subreddits = SplitList(v)
	}
	if v, ok := lookup("PUSHSHIFT_PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PUSHSHIFT_PAGE_SIZE: %w", err)
		}
		cfg.PageSize = n
	}
	if v, ok := lookup("PUSHSHIFT_RPS"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PUSHSHIFT_RPS: %w", err)
		}
		cfg.RequestsPerSecond = f
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Location returns the zone dates are interpreted in.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Window returns [Start, End) as epoch seconds.
func (c Config) Window() (after, before int64, err error) {
	loc, err := c.Location()
	if err != nil {
		return 0, 0, fmt.Errorf("timezone: %w", err)
	}
	start, err := parseTime(c.Start, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(c.End, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("end: %w", err)
	}
	return start.Unix(), end.Unix(), nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Validate checks the settings a run cannot do without.
func (c Config) Validate() error {
	var errs []error
	if len(c.Subreddits) == 0 {
		errs = append(errs, errors.New("no subreddits"))
	}
	after, before, err := c.Window()
	if err != nil {
		errs = append(errs, err)
	} else if before <= after {
		errs = append(errs, fmt.Errorf("empty window [%s, %s)", c.Start, c.End))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size %d", c.PageSize))
	}
	if c.ThrottleMax < c.ThrottleMin {
		errs = append(errs, fmt.Errorf("throttle max %s below min %s", c.ThrottleMax.Std(), c.ThrottleMin.Std()))
	}
	if c.OutDir == "" || c.JSONName == "" || c.CSVName == "" || c.TextName == "" {
		errs = append(errs, errors.New("output paths must be set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// JSONPath returns the raw snapshot path.
func (c Config) JSONPath() string { return filepath.Join(c.OutDir, c.JSONName) }

// CSVPath returns the long table path.
func (c Config) CSVPath() string { return filepath.Join(c.OutDir, c.CSVName) }

// TextPath returns the comment corpus path.
func (c Config) TextPath() string { return filepath.Join(c.OutDir, c.TextName) }
