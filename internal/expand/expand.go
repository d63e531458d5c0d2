// Package expand follows the cross-reference links of a search results page
// and attaches the parsed detail pages to each summary row.
//
// Fetching is delegated to a Fetcher (internal/portal in production); this
// package only parses and assembles.
package expand

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eams/internal/extracthtml"
	"eams/internal/metrics"
	"eams/internal/record"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoFetcher is returned when an expansion needs a page but the Expander
// was built without a Fetcher.
var ErrNoFetcher = errors.New("expand: no fetcher configured")

// Fetcher returns the HTML of the page at url. Relative urls are resolved by
// the implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

// Mode is the expansion depth requested for listing rows.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeBasic Mode = "basic"
	ModeCase  Mode = "case"
)

// ParseMode validates a mode name. Empty means none.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeNone, nil
	case ModeNone, ModeBasic, ModeCase:
		return m, nil
	default:
		return "", fmt.Errorf("unknown expand mode %q (want none, basic or case)", s)
	}
}

// Options selects what Listing follows.
type Options struct {
	Mode   Mode
	Events bool // fetch event sub-pages of every expanded case
}

// Expander fetches and assembles detail pages.
type Expander struct {
	fetcher     Fetcher
	log         *zap.Logger
	concurrency int
}

// Option configures an Expander.
type Option func(*Expander)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Expander) {
		if l != nil {
			e.log = l
		}
	}
}

// WithConcurrency bounds how many case pages Cases fetches at once. Values
// below 2 keep fetching sequential.
func WithConcurrency(n int) Option {
	return func(e *Expander) { e.concurrency = n }
}

// New returns an Expander that fetches through f.
func New(f Fetcher, opts ...Option) *Expander {
	e := &Expander{fetcher: f, log: zap.NewNop(), concurrency: 1}
	for _, o := range opts {
		o(e)
	}
	return e
}

// page fetches and parses url, recording the step under kind.
func (e *Expander) page(ctx context.Context, url, kind string) (*goquery.Document, error) {
	if e.fetcher == nil {
		return nil, ErrNoFetcher
	}
	start := time.Now()
	html, err := e.fetcher.Fetch(ctx, url)
	metrics.RecordStep(kind, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordPage(kind)
	e.log.Debug("fetched page", zap.String("kind", kind), zap.String("url", url), zap.Int("bytes", len(html)))
	return extracthtml.ParseDocument(html)
}

// Case fetches one case detail page and merges every table into a single
// record. With includeEvents, the last event sub-page linked from an
// unlabeled column is fetched and its rows stored under "events"; a later
// link supersedes earlier ones.
func (e *Expander) Case(ctx context.Context, url string, includeEvents bool) (*record.Record, error) {
	doc, err := e.page(ctx, url, "case")
	if err != nil {
		return nil, fmt.Errorf("fetch case %s: %w", url, err)
	}
	d := extracthtml.AssembleDetail(doc)
	if !includeEvents || len(d.EventLinks) == 0 {
		return d.Record, nil
	}

	events, err := e.Events(ctx, d.EventLinks[len(d.EventLinks)-1])
	if err != nil {
		return nil, err
	}
	d.Record.Set(extracthtml.KeyEvents, record.List(events...))
	return d.Record, nil
}

// Cases expands every url with Case. Results keep the order of urls; the
// first error aborts the remaining fetches.
func (e *Expander) Cases(ctx context.Context, urls []string, includeEvents bool) ([]*record.Record, error) {
	out := make([]*record.Record, len(urls))
	if e.concurrency < 2 || len(urls) < 2 {
		for i, u := range urls {
			rec, err := e.Case(ctx, u, includeEvents)
			if err != nil {
				return nil, err
			}
			out[i] = rec
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			rec, err := e.Case(gctx, u, includeEvents)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Events fetches an event sub-page and returns one record per event row.
func (e *Expander) Events(ctx context.Context, url string) ([]*record.Record, error) {
	doc, err := e.page(ctx, url, "events")
	if err != nil {
		return nil, fmt.Errorf("fetch events %s: %w", url, err)
	}
	events := extracthtml.AssembleEvents(doc)
	metrics.RecordRecords("event", len(events))
	return events, nil
}

// URLs fetches url and returns every link of every table on it. A listing
// link leads to such a page; its links are the case detail pages.
func (e *Expander) URLs(ctx context.Context, url string) ([]string, error) {
	doc, err := e.page(ctx, url, "urls")
	if err != nil {
		return nil, fmt.Errorf("fetch url info %s: %w", url, err)
	}
	return extracthtml.LinkURLs(doc), nil
}

// URLInfo fetches url and returns its tables as {table: {row: {key: value}}}.
func (e *Expander) URLInfo(ctx context.Context, url string) (*record.Record, error) {
	doc, err := e.page(ctx, url, "urlinfo")
	if err != nil {
		return nil, fmt.Errorf("fetch url info %s: %w", url, err)
	}
	return extracthtml.URLInfo(doc), nil
}

// Basic is the shallow expansion: URLInfo flattened into one record.
func (e *Expander) Basic(ctx context.Context, url string) (*record.Record, error) {
	info, err := e.URLInfo(ctx, url)
	if err != nil {
		return nil, err
	}
	return record.Flatten(record.Nested(info)), nil
}

// Listing parses a search results page and expands each row per opts.
//
// With ModeNone link cells keep their raw href. Otherwise link columns are
// dropped from the row and the right-most link is followed: ModeCase stores
// the list of case records under "details", ModeBasic the flattened page.
// Any fetch error aborts the whole listing.
func (e *Expander) Listing(ctx context.Context, html string, opts Options) ([]*record.Record, error) {
	doc, err := extracthtml.ParseDocument(html)
	if err != nil {
		return nil, err
	}
	rows := extracthtml.AssembleListing(doc)
	metrics.RecordRecords("listing", len(rows))

	out := make([]*record.Record, 0, len(rows))
	for i, row := range rows {
		link, ok := row.LastLink()
		if opts.Mode == ModeNone || opts.Mode == "" || !ok {
			out = append(out, row.Record)
			continue
		}
		for _, l := range row.Links {
			if l.Key != "" {
				row.Record.Delete(l.Key)
			}
		}

		switch opts.Mode {
		case ModeCase:
			urls, err := e.URLs(ctx, link.Href)
			if err != nil {
				return nil, fmt.Errorf("expand row %d: %w", i, err)
			}
			cases, err := e.Cases(ctx, urls, opts.Events)
			if err != nil {
				return nil, fmt.Errorf("expand row %d: %w", i, err)
			}
			row.Record.Set(extracthtml.KeyDetails, record.List(cases...))
		case ModeBasic:
			basic, err := e.Basic(ctx, link.Href)
			if err != nil {
				return nil, fmt.Errorf("expand row %d: %w", i, err)
			}
			row.Record.Set(extracthtml.KeyDetails, record.Nested(basic))
		default:
			return nil, fmt.Errorf("expand row %d: unknown mode %q", i, opts.Mode)
		}
		e.log.Debug("expanded row", zap.Int("row", i), zap.String("mode", string(opts.Mode)), zap.String("href", link.Href))
		out = append(out, row.Record)
	}
	return out, nil
}
