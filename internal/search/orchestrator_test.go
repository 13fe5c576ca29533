package search_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/DeafMist/news-monitor/backend/internal/models"
	"github.com/DeafMist/news-monitor/backend/internal/search"
)

type stubFetcher struct {
	mu      sync.Mutex
	items   map[string][]models.RawNewsItem
	errs    map[string]error
	block   map[string]bool
	panics  map[string]bool
	calls   []string
	limits  []int
	invalid error
}

func (s *stubFetcher) Fetch(ctx context.Context, query string, limit int) ([]models.RawNewsItem, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.limits = append(s.limits, limit)
	s.mu.Unlock()

	if s.panics[query] {
		panic("boom")
	}
	if s.block[query] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := s.errs[query]; err != nil {
		return nil, err
	}
	return s.items[query], nil
}

type validatingFetcher struct {
	stubFetcher
}

func (v *validatingFetcher) Validate() error {
	return v.invalid
}

func pub(day, hour int) string {
	return time.Date(2024, 3, day, hour, 0, 0, 0, search.ReferenceZone).Format("Mon, 02 Jan 2006 15:04:05 -0700")
}

func newOrchestrator(f search.Fetcher, opts search.Options) *search.Orchestrator {
	opts.Now = func() time.Time { return fixedNow }
	return search.New(f, opts, nil)
}

func TestRunOrLogicIsolatesFailures(t *testing.T) {
	f := &stubFetcher{
		items: map[string][]models.RawNewsItem{
			"alpha": {
				{Title: "Alpha one", Link: "https://a/1", PubDate: pub(10, 9)},
				{Title: "Alpha two story", Link: "https://a/2", PubDate: pub(12, 9)},
			},
			"custom": {
				{Title: "Custom item", Link: "https://c/1", PubDate: pub(14, 9)},
			},
		},
		errs: map[string]error{"beta": errors.New("status 500")},
	}
	o := newOrchestrator(f, search.Options{})

	rs, err := o.Run(context.Background(), models.SearchParams{
		Keywords:      []string{"alpha", "beta"},
		CustomKeyword: "custom",
		Logic:         models.LogicOR,
	})
	require.NoError(t, err)

	require.Equal(t, []string{"alpha", "beta", "custom"}, rs.Queries())

	alpha, ok := rs.Get("alpha")
	require.True(t, ok)
	require.Len(t, alpha, 2)
	require.Equal(t, "Alpha two story", alpha[0].Title)

	beta, ok := rs.Get("beta")
	require.True(t, ok)
	require.NotNil(t, beta)
	require.Empty(t, beta)

	custom, _ := rs.Get("custom")
	require.Len(t, custom, 1)

	require.ElementsMatch(t, []string{"alpha", "beta", "custom"}, f.calls)
	for _, limit := range f.limits {
		require.Equal(t, search.DefaultFetchLimit, limit)
	}
}

func TestRunAndLogicSingleQuery(t *testing.T) {
	f := &stubFetcher{items: map[string][]models.RawNewsItem{
		"a b c": {{Title: "Combined", Link: "https://x/1", PubDate: pub(13, 9)}},
	}}
	o := newOrchestrator(f, search.Options{})

	rs, err := o.Run(context.Background(), models.SearchParams{
		Keywords:      []string{"a", "b"},
		CustomKeyword: "c",
		Logic:         models.LogicAND,
		Display:       10,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a b c"}, rs.Queries())
	require.Equal(t, []string{"a b c"}, f.calls)
}

func TestRunAppliesDisplayAndWindow(t *testing.T) {
	f := &stubFetcher{items: map[string][]models.RawNewsItem{
		"q": {
			{Title: "Too old", Link: "https://q/0", PubDate: pub(1, 9)},
			{Title: "First headline", Link: "https://q/1", PubDate: pub(10, 9)},
			{Title: "Second unrelated topic", Link: "https://q/2", PubDate: pub(11, 9)},
			{Title: "Third different news", Link: "https://q/3", PubDate: pub(12, 9)},
		},
	}}
	o := newOrchestrator(f, search.Options{})

	rs, err := o.Run(context.Background(), models.SearchParams{
		Keywords:  []string{"q"},
		Display:   2,
		StartDate: "2024-03-05",
	})
	require.NoError(t, err)

	items, _ := rs.Get("q")
	require.Len(t, items, 2)
	require.Equal(t, "Third different news", items[0].Title)
	require.Equal(t, "Second unrelated topic", items[1].Title)
}

func TestRunDefaultDisplay(t *testing.T) {
	raw := make([]models.RawNewsItem, 0, 80)
	for i := 0; i < 80; i++ {
		raw = append(raw, models.RawNewsItem{
			Title:   fmt.Sprintf("%08x", uint32(i)*2654435761),
			Link:    fmt.Sprintf("https://q/%d", i),
			PubDate: pub(10, 9),
		})
	}
	f := &stubFetcher{items: map[string][]models.RawNewsItem{"q": raw}}
	o := newOrchestrator(f, search.Options{})

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"q"}})
	require.NoError(t, err)
	items, _ := rs.Get("q")
	require.LessOrEqual(t, len(items), search.DefaultDisplay)
	require.NotEmpty(t, items)
}

func TestRunTimeoutYieldsEmptyList(t *testing.T) {
	f := &stubFetcher{
		block: map[string]bool{"slow": true},
		items: map[string][]models.RawNewsItem{
			"fast": {{Title: "Fast", Link: "https://f/1", PubDate: pub(14, 9)}},
		},
	}
	o := newOrchestrator(f, search.Options{FetchTimeout: 20 * time.Millisecond})

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"slow", "fast"}})
	require.NoError(t, err)

	slow, _ := rs.Get("slow")
	require.Empty(t, slow)
	fast, _ := rs.Get("fast")
	require.Len(t, fast, 1)
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	f := &stubFetcher{
		panics: map[string]bool{"bad": true},
		items: map[string][]models.RawNewsItem{
			"good": {{Title: "Good", Link: "https://g/1", PubDate: pub(14, 9)}},
		},
	}
	o := newOrchestrator(f, search.Options{Concurrency: 1})

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"bad", "good"}})
	require.NoError(t, err)

	bad, ok := rs.Get("bad")
	require.True(t, ok)
	require.Empty(t, bad)
	good, _ := rs.Get("good")
	require.Len(t, good, 1)
}

func TestRunMissingCredentials(t *testing.T) {
	f := &validatingFetcher{}
	f.invalid = search.ErrMissingCredentials
	o := newOrchestrator(f, search.Options{})

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"q"}})
	require.Nil(t, rs)
	require.ErrorIs(t, err, search.ErrMissingCredentials)
	require.Empty(t, f.calls)
}

func TestRunNoQueries(t *testing.T) {
	f := &stubFetcher{}
	o := newOrchestrator(f, search.Options{})

	rs, err := o.Run(context.Background(), models.SearchParams{Logic: models.LogicAND})
	require.NoError(t, err)
	require.Equal(t, 0, rs.Len())
	require.Empty(t, f.calls)
}

func TestRunUsesLimiter(t *testing.T) {
	f := &stubFetcher{}
	limiter := rate.NewLimiter(rate.Inf, 1)
	o := newOrchestrator(f, search.Options{Limiter: limiter})

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"a", "b", "c"}})
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())
	require.Len(t, f.calls, 3)
}

func TestRunLimiterExhaustedCountsAsFailure(t *testing.T) {
	f := &stubFetcher{items: map[string][]models.RawNewsItem{
		"a": {{Title: "A", Link: "https://a/1", PubDate: pub(14, 9)}},
	}}
	// A zero-burst limiter can never grant a token.
	limiter := rate.NewLimiter(rate.Limit(1), 0)
	o := newOrchestrator(f, search.Options{Limiter: limiter, FetchTimeout: 50 * time.Millisecond})

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"a"}})
	require.NoError(t, err)
	items, _ := rs.Get("a")
	require.Empty(t, items)
	require.Empty(t, f.calls)
}

func TestRunResultSetCarriesResolvedWindow(t *testing.T) {
	f := &stubFetcher{}
	calls := 0
	o := search.New(f, search.Options{Now: func() time.Time {
		calls++
		return fixedNow.Add(time.Duration(calls) * time.Minute)
	}}, nil)

	rs, err := o.Run(context.Background(), models.SearchParams{Keywords: []string{"q"}})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.True(t, rs.Window().End.Equal(fixedNow.Add(time.Minute)))
	require.True(t, rs.Window().Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, search.ReferenceZone)))
}
