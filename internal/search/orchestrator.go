package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/DeafMist/news-monitor/backend/internal/models"
	"github.com/DeafMist/news-monitor/backend/internal/processing"
)

const (
	DefaultDisplay      = 50
	DefaultFetchLimit   = 100
	DefaultFetchTimeout = 10 * time.Second
	DefaultConcurrency  = 4
)

// ErrMissingCredentials is returned when the fetch backend has no API keys.
var ErrMissingCredentials = errors.New("missing api credentials")

// Fetcher retrieves the most recent raw hits for a single query.
type Fetcher interface {
	Fetch(ctx context.Context, query string, limit int) ([]models.RawNewsItem, error)
}

// Validator is implemented by fetchers that can tell up front whether they
// are usable.
type Validator interface {
	Validate() error
}

// Options tune the orchestrator. Zero values take the defaults.
type Options struct {
	FetchLimit   int
	FetchTimeout time.Duration
	Concurrency  int
	// Limiter, when set, is shared by every outbound fetch.
	Limiter *rate.Limiter
	Now     func() time.Time
}

// Orchestrator runs one search request: plan queries, fetch each one and
// process the hits.
type Orchestrator struct {
	fetcher Fetcher
	opts    Options
	log     *slog.Logger
}

// New creates an orchestrator over fetcher.
func New(fetcher Fetcher, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.FetchLimit <= 0 || opts.FetchLimit > DefaultFetchLimit {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{fetcher: fetcher, opts: opts, log: logger}
}

// Run executes the search. Per-query failures produce empty lists; only an
// unusable fetcher fails the whole run.
func (o *Orchestrator) Run(ctx context.Context, params models.SearchParams) (*models.ResultSet, error) {
	if v, ok := o.fetcher.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validate fetcher: %w", err)
		}
	}

	display := params.Display
	if display <= 0 {
		display = DefaultDisplay
	}

	window := ResolveWindow(params.StartDate, params.EndDate, o.opts.Now())
	queries := Plan(params.Keywords, params.CustomKeyword, params.Logic)

	o.log.Debug("search planned",
		slog.Int("queries", len(queries)),
		slog.Time("window_start", window.Start),
		slog.Time("window_end", window.End),
	)

	results := make([][]models.ProcessedNewsItem, len(queries))

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i, query := range queries {
		g.Go(func() error {
			results[i] = o.runQuery(ctx, query, window, display)
			return nil
		})
	}
	_ = g.Wait()

	set := models.NewResultSet()
	set.SetWindow(window)
	for i, query := range queries {
		set.Set(query, results[i])
	}
	return set, nil
}

func (o *Orchestrator) runQuery(ctx context.Context, query string, window models.DateWindow, display int) (items []models.ProcessedNewsItem) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("query panicked", slog.String("query", query), slog.Any("panic", r))
			items = []models.ProcessedNewsItem{}
		}
	}()

	raw, err := o.fetch(ctx, query)
	if err != nil {
		o.log.Warn("fetch failed", slog.String("query", query), slog.Any("err", err))
		return []models.ProcessedNewsItem{}
	}

	items = processing.Process(raw, window, display)
	o.log.Debug("query processed",
		slog.String("query", query),
		slog.Int("raw", len(raw)),
		slog.Int("kept", len(items)),
	)
	return items
}

func (o *Orchestrator) fetch(ctx context.Context, query string) ([]models.RawNewsItem, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()

	if o.opts.Limiter != nil {
		if err := o.opts.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	return o.fetcher.Fetch(ctx, query, o.opts.FetchLimit)
}
