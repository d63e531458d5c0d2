// Command eams searches the EAMS public case portal and prints the extracted
// cases as JSON.
//
//	eams -adj ADJ1546485 -events
//	eams -first J -last A -expand basic -config eams.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eams/internal/config"
	"eams/internal/expand"
	"eams/internal/logging"
	"eams/internal/metrics"
	"eams/internal/metrics/datadog"
	"eams/internal/metrics/prompush"
	"eams/internal/portal"
	"eams/internal/record"
	"eams/internal/search"
	"eams/internal/storage"

	_ "eams/internal/storage/all"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// searcher runs the two portal searches.
type searcher interface {
	FindByADJ(ctx context.Context, adj string, opts expand.Options) ([]*record.Record, error)
	FindByName(ctx context.Context, first, last string, opts expand.Options) ([]*record.Record, error)
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string) (config.Config, error)
	initMetrics func(ctx context.Context, jobName string, cfg config.Metrics, log *zap.Logger) (func(), error)
	newSearcher func(ctx context.Context, cfg config.Config, log *zap.Logger) (searcher, error)
	openStore   func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	now         func() time.Time
	newRunID    func() string
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		initMetrics: initMetrics,
		newSearcher: newPortalSearcher,
		openStore:   storage.New,
		now:         time.Now,
		newRunID:    storage.NewRunID,
	}
}

type options struct {
	cfgPath   string
	adj       string
	first     string
	last      string
	expand    string
	events    bool
	sessionID string
	store     string
	dsn       string
	backend   string
	pretty    bool
	validate  bool
	verbose   bool
}

const usage = "usage: eams [-config file] (-adj ADJ | -first NAME -last NAME) [-expand none|basic|case] [-events]"

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("eams", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cfgPath, "config", "", "config file (.json, .yaml, .toml)")
	fs.StringVar(&o.adj, "adj", "", "search by ADJ case number")
	fs.StringVar(&o.first, "first", "", "search by injured worker first name")
	fs.StringVar(&o.last, "last", "", "search by injured worker last name")
	fs.StringVar(&o.expand, "expand", "", "expansion: none, basic or case (default case for -adj, basic for names)")
	fs.BoolVar(&o.events, "events", false, "also fetch case event pages (case expansion)")
	fs.StringVar(&o.sessionID, "session-id", "", "reuse an existing JSESSIONID")
	fs.StringVar(&o.store, "store", "", "persist results: sqlite, postgres or mssql (overrides storage.kind)")
	fs.StringVar(&o.dsn, "dsn", "", "storage DSN (overrides storage.dsn)")
	fs.StringVar(&o.backend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides metrics.backend)")
	fs.BoolVar(&o.pretty, "pretty", false, "indent JSON output")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	fs.BoolVar(&o.verbose, "v", false, "enable debug logs")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.validate {
		return o, nil
	}
	byName := strings.TrimSpace(o.first) != "" || strings.TrimSpace(o.last) != ""
	if strings.TrimSpace(o.adj) == "" && !byName {
		return o, errors.New("one of -adj or -first/-last is required")
	}
	if strings.TrimSpace(o.adj) != "" && byName {
		return o, errors.New("-adj cannot be combined with -first/-last")
	}
	return o, nil
}

// applyFlags layers command flags over the loaded config.
func applyFlags(cfg *config.Config, o options) {
	if o.expand != "" {
		cfg.Extract.Expand = o.expand
	}
	if o.events {
		cfg.Extract.Events = true
	}
	if o.sessionID != "" {
		cfg.Requester.SessionID = o.sessionID
	}
	if o.store != "" {
		cfg.Storage.Kind = o.store
	}
	if o.dsn != "" {
		cfg.Storage.DSN = o.dsn
	}
	if o.backend != "" {
		cfg.Metrics.Backend = o.backend
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
}

// runMain returns the process exit code: 0 ok, 1 runtime error, 2 usage or
// invalid configuration.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "%v\n%s\n", err, usage)
		}
		return 2
	}

	cfg, err := deps.loadConfig(o.cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}
	applyFlags(&cfg, o)

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 2
	}
	if o.validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	cleanup, err := deps.initMetrics(ctx, cfg.Job, cfg.Metrics, logger)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	s, err := deps.newSearcher(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "open portal session: %v\n", err)
		return 1
	}

	mode, _ := expand.ParseMode(cfg.Extract.Expand)
	if strings.TrimSpace(cfg.Extract.Expand) == "" {
		mode = ""
	}
	opts := expand.Options{Mode: mode, Events: cfg.Extract.Events}

	start := deps.now()
	var (
		recs  []*record.Record
		query string
	)
	if adj := strings.TrimSpace(o.adj); adj != "" {
		query = "adj:" + strings.ToUpper(adj)
		recs, err = s.FindByADJ(ctx, adj, opts)
	} else {
		query = "name:" + strings.TrimSpace(o.first) + "|" + strings.TrimSpace(o.last)
		recs, err = s.FindByName(ctx, o.first, o.last, opts)
	}
	if err != nil {
		fmt.Fprintf(stderr, "search: %v\n", err)
		return 1
	}
	if recs == nil {
		recs = []*record.Record{}
	}

	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	if o.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(recs); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return 1
	}

	if kind := strings.TrimSpace(cfg.Storage.Kind); kind != "" {
		repo, err := deps.openStore(ctx, storage.Config{Kind: strings.ToLower(kind), DSN: cfg.Storage.DSN})
		if err != nil {
			fmt.Fprintf(stderr, "open storage: %v\n", err)
			return 1
		}
		defer repo.Close()

		runID := deps.newRunID()
		n, err := storage.SaveResults(ctx, repo, cfg.Storage.Table, runID, query, recs, start)
		if err != nil {
			fmt.Fprintf(stderr, "store results: %v\n", err)
			return 1
		}
		logger.Info("results stored", zap.String("run_id", runID), zap.String("backend", kind), zap.Int64("inserted", n))
	}

	logger.Info("completed", zap.String("query", query), zap.Int("rows", len(recs)),
		zap.Duration("took", deps.now().Sub(start).Truncate(time.Millisecond)))
	return 0
}

// newPortalSearcher builds the portal session from cfg and bootstraps it.
func newPortalSearcher(ctx context.Context, cfg config.Config, logger *zap.Logger) (searcher, error) {
	var cache *portal.DiskCache
	if dir := strings.TrimSpace(cfg.Portal.CacheDir); dir != "" {
		c, err := portal.NewDiskCache(dir, cfg.Portal.CacheTTL.Std())
		if err != nil {
			return nil, err
		}
		cache = c
	}
	client, err := portal.New(portal.Options{
		BaseURL:   cfg.Portal.BaseURL,
		Timeout:   cfg.Portal.Timeout.Std(),
		Retries:   cfg.Portal.Retries,
		RateLimit: cfg.Portal.RateLimit,
		UserAgent: cfg.Portal.UserAgent,
		SessionID: cfg.Requester.SessionID,
		Requester: portal.Requester{
			FirstName: cfg.Requester.FirstName,
			LastName:  cfg.Requester.LastName,
			UAN:       cfg.Requester.UAN,
			Email:     cfg.Requester.Email,
			Reason:    cfg.Requester.Reason,
		},
		Cache:  cache,
		Job:    cfg.Job,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Bootstrap(ctx); err != nil {
		return nil, err
	}
	return search.New(client, logger, expand.WithConcurrency(cfg.Extract.Concurrency)), nil
}

// ---- metrics wiring ----

// metricsBackend is the part of a closable backend initMetrics owns.
type metricsBackend interface {
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metrics.Backend, error) {
		return prompush.NewBackend(job, url)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
)

// initMetrics selects the backend named in cfg. The returned cleanup is never
// nil and flushes or closes the backend, logging failures to logger.
func initMetrics(ctx context.Context, jobName string, cfg config.Metrics, logger *zap.Logger) (func(), error) {
	noop := func() {}
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobName == "" {
		jobName = "eams"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none", "noop":
		return noop, nil

	case "pushgateway", "prom", "prometheus":
		b, err := newPushBackend(jobName, cfg.PushgatewayURL)
		if err != nil {
			return noop, fmt.Errorf("pushgateway: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Flush(); err != nil {
				logger.Error("metrics: pushgateway flush failed", zap.Error(err))
			}
		}, nil

	case "datadog", "dd":
		tags := cfg.Tags
		if len(tags) == 0 {
			tags = datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		}
		b, err := newDatadogBackend(ctx, datadog.Options{JobName: jobName, Tags: tags, FlushEvery: 60 * time.Second})
		if err != nil {
			return noop, fmt.Errorf("datadog: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logger.Error("metrics: datadog close failed", zap.Error(err))
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q", cfg.Backend)
	}
}
