// Package search runs the two portal searches, by ADJ case number and by
// injured worker name, and expands the result rows.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eams/internal/expand"
	"eams/internal/metrics"
	"eams/internal/portal"
	"eams/internal/record"

	"go.uber.org/zap"
)

// ErrEmptyQuery is returned when a search has nothing to search for.
var ErrEmptyQuery = errors.New("search: empty query")

// Session is the portal side of a search. *portal.Client implements it.
type Session interface {
	expand.Fetcher
	Search(ctx context.Context, form portal.SearchForm) (string, error)
}

// Searcher submits searches through a Session and expands the listing.
type Searcher struct {
	session  Session
	expander *expand.Expander
	log      *zap.Logger
}

// New returns a Searcher. opts configure the underlying expand.Expander.
func New(s Session, log *zap.Logger, opts ...expand.Option) *Searcher {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append([]expand.Option{expand.WithLogger(log)}, opts...)
	return &Searcher{session: s, expander: expand.New(s, opts...), log: log}
}

// FindByADJ searches by case number. An empty Mode expands each case.
func (s *Searcher) FindByADJ(ctx context.Context, adj string, opts expand.Options) ([]*record.Record, error) {
	adj = strings.ToUpper(strings.TrimSpace(adj))
	if adj == "" {
		return nil, ErrEmptyQuery
	}
	if opts.Mode == "" {
		opts.Mode = expand.ModeCase
	}
	return s.run(ctx, "adj", portal.SearchForm{CaseNumber: adj}, opts)
}

// FindByName searches by injured worker name. Either part may be a prefix;
// an empty Mode uses the basic expansion.
func (s *Searcher) FindByName(ctx context.Context, first, last string, opts expand.Options) ([]*record.Record, error) {
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)
	if first == "" && last == "" {
		return nil, ErrEmptyQuery
	}
	if opts.Mode == "" {
		opts.Mode = expand.ModeBasic
	}
	return s.run(ctx, "name", portal.SearchForm{FirstName: first, LastName: last}, opts)
}

func (s *Searcher) run(ctx context.Context, kind string, form portal.SearchForm, opts expand.Options) ([]*record.Record, error) {
	start := time.Now()
	html, err := s.session.Search(ctx, form)
	metrics.RecordStep("search", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordPage("listing")

	recs, err := s.expander.Listing(ctx, html, opts)
	if err != nil {
		return nil, fmt.Errorf("search by %s: %w", kind, err)
	}
	s.log.Info("search done",
		zap.String("by", kind),
		zap.String("mode", string(opts.Mode)),
		zap.Bool("events", opts.Events),
		zap.Int("rows", len(recs)),
		zap.Duration("took", time.Since(start)))
	return recs, nil
}
