package rss

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/DeafMist/news-monitor/backend/internal/models"
	"github.com/DeafMist/news-monitor/backend/internal/search"
)

// DefaultSearchURL is the Google News RSS search for Korean results.
const DefaultSearchURL = "https://news.google.com/rss/search?q=%s&hl=ko&gl=KR&ceid=KR:ko"

// Client searches a news provider that answers queries with an RSS feed.
type Client struct {
	template string
	parser   *gofeed.Parser
	log      *slog.Logger
}

var _ search.Fetcher = (*Client)(nil)

// New creates a client. template must contain exactly one %s, which receives
// the escaped query.
func New(template string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if template == "" {
		template = DefaultSearchURL
	}
	if strings.Count(template, "%s") != 1 {
		return nil, fmt.Errorf("rss search url %q must contain exactly one %%s", template)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	parser := gofeed.NewParser()
	if httpClient != nil {
		parser.Client = httpClient
	}

	return &Client{template: template, parser: parser, log: logger}, nil
}

// Fetch returns up to limit feed items for query, newest first.
func (c *Client) Fetch(ctx context.Context, query string, limit int) ([]models.RawNewsItem, error) {
	feedURL := fmt.Sprintf(c.template, url.QueryEscape(query))

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch rss search: %w", err)
	}

	entries := feed.Items
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].PublishedParsed, entries[j].PublishedParsed
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]models.RawNewsItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, models.RawNewsItem{
			Title:       entry.Title,
			Link:        entry.Link,
			Description: entry.Description,
			PubDate:     pubDate(entry),
		})
	}

	c.log.Debug("rss search", slog.String("query", query), slog.Int("items", len(items)))
	return items, nil
}

// pubDate renders the entry date with a numeric offset; feeds commonly use
// zone names such as GMT.
func pubDate(entry *gofeed.Item) string {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.Format(time.RFC1123Z)
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.Format(time.RFC1123Z)
	}
	return entry.Published
}
